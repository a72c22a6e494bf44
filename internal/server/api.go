package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgard/zalobot/internal/bot/handlers"
	"github.com/edgard/zalobot/internal/database"
	"github.com/edgard/zalobot/internal/errs"
	"github.com/edgard/zalobot/internal/logger"
	"github.com/edgard/zalobot/internal/zalo"
)

const defaultMessagesLimit = 100

// groupJSON is the API view of a group.
type groupJSON struct {
	GroupID   string    `json:"group_id"`
	GroupName *string   `json:"group_name"`
	OAID      *string   `json:"oa_id"`
	AppID     *string   `json:"app_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageJSON struct {
	ID              int64            `json:"id"`
	GroupID         string           `json:"group_id"`
	AuthorID        *string          `json:"author_id"`
	AuthorName      *string          `json:"author_name"`
	MessageText     string           `json:"message_text"`
	OriginalMessage *string          `json:"original_message"`
	ParsedData      database.RawJSON `json:"parsed_data"`
	MessageID       *string          `json:"message_id"`
	CreatedAt       time.Time        `json:"created_at"`
}

type statsJSON struct {
	TotalMessages int64   `json:"total_messages"`
	FirstMessage  *string `json:"first_message"`
	LastMessage   *string `json:"last_message"`
	UniqueAuthors int64   `json:"unique_authors"`
	TotalItems    int64   `json:"total_items"`
	TotalQuantity float64 `json:"total_quantity"`
}

type analyzeRequest struct {
	Message    string `json:"message"     binding:"required"`
	GroupID    string `json:"group_id"    binding:"required"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	MessageID  string `json:"message_id"`
}

type queryRequest struct {
	GroupID  string `json:"group_id" binding:"required"`
	Question string `json:"question" binding:"required"`
}

type sendMessageRequest struct {
	GroupID string `json:"group_id" binding:"required"`
	Message string `json:"message"  binding:"required"`
}

type createGroupRequest struct {
	GroupName        string   `json:"group_name"        binding:"required"`
	MemberUserIDs    []string `json:"member_user_ids"   binding:"required,min=1"`
	AssetID          string   `json:"asset_id"`
	GroupDescription string   `json:"group_description"`
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errs.Code(err) {
	case errs.CodeValidation:
		status = http.StatusBadRequest
	case errs.CodeNetwork, errs.CodeAnalysis:
		status = http.StatusBadGateway
	}
	logger.FromContext(c, s.logger).Error("API request failed", "path", c.FullPath(), "error", err)
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}

func (s *Server) handleAPIInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    ServiceName,
		"version": Version,
		"endpoints": gin.H{
			"webhook":     "GET/POST /webhook",
			"health":      "GET /health",
			"info":        "GET /api/info",
			"quota":       "GET /api/groups/quota",
			"createGroup": "POST /api/groups/create",
			"sendMessage": "POST /api/groups/message",
			"analyze":     "POST /api/analyze",
			"query":       "POST /api/query",
			"groups":      "GET /api/groups",
			"messages":    "GET /api/messages/:group_id",
			"stats":       "GET /api/stats/:group_id",
		},
		"oa_id": s.deps.Config.Zalo.OAID,
	})
}

func (s *Server) handleAPIGroups(c *gin.Context) {
	groups, err := s.deps.Handlers.Store.GetAllGroups(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]groupJSON, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupJSON{
			GroupID:   g.GroupID,
			GroupName: nullable(g.GroupName.String, g.GroupName.Valid),
			OAID:      nullable(g.OAID.String, g.OAID.Valid),
			AppID:     nullable(g.AppID.String, g.AppID.Valid),
			CreatedAt: g.CreatedAt,
			UpdatedAt: g.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "groups": out, "count": len(out)})
}

func (s *Server) handleAPIMessages(c *gin.Context) {
	groupID := c.Param("group_id")
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = defaultMessagesLimit
	}
	offset, err := strconv.Atoi(c.Query("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	messages, err := s.deps.Handlers.Store.GetMessagesByGroup(c.Request.Context(), groupID, limit, offset)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]messageJSON, 0, len(messages))
	for _, m := range messages {
		out = append(out, messageJSON{
			ID:              m.ID,
			GroupID:         m.GroupID,
			AuthorID:        nullable(m.AuthorID.String, m.AuthorID.Valid),
			AuthorName:      nullable(m.AuthorName.String, m.AuthorName.Valid),
			MessageText:     m.MessageText,
			OriginalMessage: nullable(m.OriginalMessage.String, m.OriginalMessage.Valid),
			ParsedData:      m.ParsedData,
			MessageID:       nullable(m.MessageID.String, m.MessageID.Valid),
			CreatedAt:       m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"group_id": groupID,
		"messages": out,
		"count":    len(out),
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleAPIStats(c *gin.Context) {
	groupID := c.Param("group_id")
	stats, err := s.deps.Handlers.Store.GetGroupStats(c.Request.Context(), groupID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"group_id": groupID,
		"stats": statsJSON{
			TotalMessages: stats.TotalMessages,
			FirstMessage:  nullable(stats.FirstMessage.String, stats.FirstMessage.Valid),
			LastMessage:   nullable(stats.LastMessage.String, stats.LastMessage.Valid),
			UniqueAuthors: stats.UniqueAuthors,
			TotalItems:    stats.TotalItems,
			TotalQuantity: stats.TotalQuantity,
		},
	})
}

// handleAPIAnalyze analyzes and stores a message without exporting or replying.
func (s *Server) handleAPIAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "message and group_id are required")
		return
	}

	ev := zalo.Event{
		"event_name": "api_analyze",
		"group_id":   req.GroupID,
		"sender":     map[string]any{"id": req.AuthorID, "name": req.AuthorName},
		"message":    map[string]any{"msg_id": req.MessageID, "text": req.Message},
	}
	content := strings.TrimSpace(req.Message)
	if _, stripped, ok := handlers.ParseCommand(content, handlers.SavePrefix); ok {
		content = stripped
	}

	analysis, msg, err := handlers.AnalyzeAndStore(c.Request.Context(), s.deps.Handlers, handlers.Command{
		Prefix:  handlers.SavePrefix,
		Content: content,
		Event:   ev,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message_id": msg.ID,
		"data":       database.RawJSON(analysis.Raw),
		"reply":      handlers.FormatAnalysisSummary(analysis, s.deps.Config.Messages),
	})
}

func (s *Server) handleAPIQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing required fields: question and group_id")
		return
	}

	answer, err := handlers.AnswerGroupQuestion(c.Request.Context(), s.deps.Handlers, req.GroupID, req.Question)
	switch {
	case errors.Is(err, handlers.ErrNoGroupData):
		c.JSON(http.StatusOK, gin.H{
			"success":   false,
			"result":    s.deps.Config.Messages.NoData,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	case err != nil:
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"result":    answer,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAPISendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "group_id and message are required")
		return
	}
	if err := s.deps.Handlers.Sender.SendGroupMessage(c.Request.Context(), req.GroupID, req.Message); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message sent successfully"})
}

func (s *Server) handleAPIGroupQuota(c *gin.Context) {
	if s.deps.Groups == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"success": false, "error": "group management is not configured"})
		return
	}
	quota, err := s.deps.Groups.GroupQuota(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": quota, "message": "Quota retrieved successfully"})
}

func (s *Server) handleAPICreateGroup(c *gin.Context) {
	if s.deps.Groups == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"success": false, "error": "group management is not configured"})
		return
	}
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "group_name and member_user_ids are required")
		return
	}
	data, err := s.deps.Groups.CreateGroup(c.Request.Context(), zalo.CreateGroupRequest{
		GroupName:        req.GroupName,
		MemberUserIDs:    req.MemberUserIDs,
		AssetID:          req.AssetID,
		GroupDescription: req.GroupDescription,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "message": "Group created successfully"})
}

func nullable(s string, valid bool) *string {
	if !valid {
		return nil
	}
	return &s
}
