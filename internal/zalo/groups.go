package zalo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edgard/zalobot/internal/errs"
)

const (
	groupQuotaPath  = "/v3.0/oa/quota/group"
	createGroupPath = "/v3.0/oa/group/creategroupwithoa"

	// MaxGroupMembers is the most members a group can be created with.
	MaxGroupMembers = 99
)

// GroupQuota is one GMF asset the OA can spend on creating a group.
type GroupQuota struct {
	AssetID      string `json:"asset_id"`
	ProductType  string `json:"product_type,omitempty"`
	Status       string `json:"status"`
	ValidThrough string `json:"valid_through,omitempty"`
}

// CreateGroupRequest describes a new GMF group. AssetID is picked from the
// available quota when empty.
type CreateGroupRequest struct {
	GroupName        string   `json:"group_name"`
	MemberUserIDs    []string `json:"member_user_ids"`
	AssetID          string   `json:"asset_id"`
	GroupDescription string   `json:"group_description,omitempty"`
}

// GroupQuota lists the OA's GMF assets.
func (c *Client) GroupQuota(ctx context.Context) ([]GroupQuota, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, groupQuotaPath, token, map[string]string{
		"quota_owner": "OA",
		"quota_type":  "sub_quota",
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to get group quota", "error", err)
		return nil, err
	}

	var quota []GroupQuota
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &quota); err != nil {
			return nil, errs.NewNetworkError("failed to decode group quota", err)
		}
	}
	return quota, nil
}

// CreateGroup creates a GMF group with the OA as owner and returns the API's data payload.
func (c *Client) CreateGroup(ctx context.Context, req CreateGroupRequest) (json.RawMessage, error) {
	req.GroupName = strings.TrimSpace(req.GroupName)
	req.GroupDescription = strings.TrimSpace(req.GroupDescription)
	switch {
	case req.GroupName == "":
		return nil, errs.NewValidationError("group_name is required", nil)
	case len(req.MemberUserIDs) == 0:
		return nil, errs.NewValidationError("member_user_ids must contain at least one OA admin", nil)
	case len(req.MemberUserIDs) > MaxGroupMembers:
		return nil, errs.NewValidationError(fmt.Sprintf("member_user_ids cannot exceed %d members", MaxGroupMembers), nil)
	}

	if req.AssetID == "" {
		quota, err := c.GroupQuota(ctx)
		if err != nil {
			return nil, err
		}
		for _, q := range quota {
			if q.Status == "available" {
				req.AssetID = q.AssetID
				break
			}
		}
		if req.AssetID == "" {
			return nil, errs.NewValidationError("no available GMF quota", nil)
		}
	}

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.post(ctx, createGroupPath, token, req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to create group", "group_name", req.GroupName, "error", err)
		return nil, err
	}

	c.logger.InfoContext(ctx, "Group created", "group_name", req.GroupName, "asset_id", req.AssetID)
	return resp.Data, nil
}
