// Package mcp exposes Socialia over the Model Context Protocol so
// agent tooling can post, schedule, and inspect jobs.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/teranos/socialia/post"
	"github.com/teranos/socialia/schedule"
)

// MCPServer wraps the dispatcher and poster registry and exposes them
// as MCP tools over stdio.
type MCPServer struct {
	dispatcher *schedule.Dispatcher
	registry   *post.Registry
	server     *server.MCPServer
}

// NewMCPServer creates the Socialia MCP server.
func NewMCPServer(dispatcher *schedule.Dispatcher, registry *post.Registry, version string) *MCPServer {
	s := &MCPServer{
		dispatcher: dispatcher,
		registry:   registry,
	}

	s.server = server.NewMCPServer(
		"socialia",
		version,
		server.WithToolCapabilities(true),
	)

	s.registerTools()
	return s
}

// Serve runs the server on stdio until the client disconnects.
func (s *MCPServer) Serve() error {
	return server.ServeStdio(s.server)
}

// registerTools registers all MCP tools.
func (s *MCPServer) registerTools() {
	postTool := mcp.NewTool("social_post",
		mcp.WithDescription("Post content to a social platform immediately"),
		mcp.WithString("platform",
			mcp.Required(),
			mcp.Description("Target platform: twitter, linkedin, reddit, youtube, slack, or bluesky"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Post content"),
		),
		mcp.WithString("reply_to",
			mcp.Description("Platform post id to reply to (twitter only)"),
		),
		mcp.WithString("subreddit",
			mcp.Description("Target subreddit (reddit only)"),
		),
		mcp.WithString("channel",
			mcp.Description("Target channel (slack only)"),
		),
		mcp.WithString("video_id",
			mcp.Description("Video to comment on (youtube only)"),
		),
	)
	s.server.AddTool(postTool, s.handleSocialPost)

	deleteTool := mcp.NewTool("social_delete",
		mcp.WithDescription("Delete a post from a social platform"),
		mcp.WithString("platform",
			mcp.Required(),
			mcp.Description("Platform the post lives on"),
		),
		mcp.WithString("post_id",
			mcp.Required(),
			mcp.Description("Platform-assigned post id"),
		),
	)
	s.server.AddTool(deleteTool, s.handleSocialDelete)

	statusTool := mcp.NewTool("social_status",
		mcp.WithDescription("List platforms and whether each has a configured poster"),
	)
	s.server.AddTool(statusTool, s.handleSocialStatus)

	feedTool := mcp.NewTool("social_feed",
		mcp.WithDescription("Get the account's recent posts from a platform"),
		mcp.WithString("platform",
			mcp.Required(),
			mcp.Description("Platform to read from"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum posts to return (default: 10)"),
		),
	)
	s.server.AddTool(feedTool, s.handleSocialFeed)

	scheduleTool := mcp.NewTool("schedule_post",
		mcp.WithDescription("Schedule a post for later. Time accepts '+30m', '+2h', 'HH:MM', or 'YYYY-MM-DD HH:MM'"),
		mcp.WithString("platform",
			mcp.Required(),
			mcp.Description("Target platform"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Post content"),
		),
		mcp.WithString("when",
			mcp.Required(),
			mcp.Description("When to post"),
		),
		mcp.WithString("subreddit",
			mcp.Description("Target subreddit (reddit only)"),
		),
		mcp.WithString("channel",
			mcp.Description("Target channel (slack only)"),
		),
		mcp.WithString("video_id",
			mcp.Description("Video to comment on (youtube only)"),
		),
		mcp.WithNumber("fluctuation_minutes",
			mcp.Description("Randomly offset the post time by up to this many minutes"),
		),
	)
	s.server.AddTool(scheduleTool, s.handleSchedulePost)

	listTool := mcp.NewTool("schedule_list",
		mcp.WithDescription("List scheduled posts ordered by due time"),
		mcp.WithBoolean("include_done",
			mcp.Description("Include posted, failed, and cancelled jobs (default: false)"),
		),
	)
	s.server.AddTool(listTool, s.handleScheduleList)

	cancelTool := mcp.NewTool("schedule_cancel",
		mcp.WithDescription("Cancel a pending scheduled post"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Scheduled post id"),
		),
	)
	s.server.AddTool(cancelTool, s.handleScheduleCancel)

	runTool := mcp.NewTool("schedule_run_due",
		mcp.WithDescription("Execute all scheduled posts that are due now"),
	)
	s.server.AddTool(runTool, s.handleScheduleRunDue)
}

func payloadFromRequest(request mcp.CallToolRequest, text string) post.Payload {
	return post.Payload{
		Text:      text,
		ReplyTo:   request.GetString("reply_to", ""),
		Subreddit: request.GetString("subreddit", ""),
		Channel:   request.GetString("channel", ""),
		VideoID:   request.GetString("video_id", ""),
	}
}

func jsonResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// handleSocialPost handles social_post tool calls
func (s *MCPServer) handleSocialPost(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	platform, err := request.RequireString("platform")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	poster, err := s.registry.Get(post.Platform(platform))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("No poster for platform %q", platform)), nil
	}

	result, err := poster.Post(ctx, payloadFromRequest(request, text))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Post failed: %v", err)), nil
	}

	return jsonResult(map[string]string{
		"platform": platform,
		"id":       result.ExternalID,
		"url":      result.URL,
	}), nil
}

// handleSocialDelete handles social_delete tool calls
func (s *MCPServer) handleSocialDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	platform, err := request.RequireString("platform")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	postID, err := request.RequireString("post_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	poster, err := s.registry.Get(post.Platform(platform))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("No poster for platform %q", platform)), nil
	}

	if err := poster.Delete(ctx, postID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Delete failed: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{"deleted": true, "id": postID}), nil
}

// handleSocialStatus handles social_status tool calls
func (s *MCPServer) handleSocialStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := make(map[string]bool, len(post.Platforms))
	for _, platform := range post.Platforms {
		_, err := s.registry.Get(platform)
		status[string(platform)] = err == nil
	}
	return jsonResult(status), nil
}

// handleSocialFeed handles social_feed tool calls
func (s *MCPServer) handleSocialFeed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	platform, err := request.RequireString("platform")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	poster, err := s.registry.Get(post.Platform(platform))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("No poster for platform %q", platform)), nil
	}
	reader, ok := poster.(post.FeedReader)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Platform %q does not support feed reading", platform)), nil
	}

	items, err := reader.Feed(ctx, request.GetInt("limit", 10))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Feed failed: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"platform": platform,
		"count":    len(items),
		"posts":    items,
	}), nil
}

// handleSchedulePost handles schedule_post tool calls
func (s *MCPServer) handleSchedulePost(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	platform, err := request.RequireString("platform")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	when, err := request.RequireString("when")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	dueAt, err := schedule.ParseScheduleTime(when, time.Now())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Bad schedule time: %v", err)), nil
	}

	job, err := s.dispatcher.Schedule(schedule.ScheduleRequest{
		Platform:           post.Platform(platform),
		Payload:            payloadFromRequest(request, text),
		DueAt:              dueAt,
		FluctuationMinutes: request.GetInt("fluctuation_minutes", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to schedule: %v", err)), nil
	}

	return jsonResult(map[string]string{
		"job_id":   job.ID,
		"platform": string(job.Platform),
		"due_at":   job.DueAt.Format(time.RFC3339),
		"state":    job.State,
	}), nil
}

// handleScheduleList handles schedule_list tool calls
func (s *MCPServer) handleScheduleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs, err := s.dispatcher.List(request.GetBool("include_done", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list: %v", err)), nil
	}

	type row struct {
		JobID    string `json:"job_id"`
		Platform string `json:"platform"`
		Text     string `json:"text"`
		DueAt    string `json:"due_at"`
		State    string `json:"state"`
		ResultID string `json:"result_id,omitempty"`
		Error    string `json:"error,omitempty"`
	}

	rows := make([]row, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, row{
			JobID:    job.ID,
			Platform: string(job.Platform),
			Text:     job.Payload.Text,
			DueAt:    job.DueAt.Format(time.RFC3339),
			State:    job.State,
			ResultID: job.ResultID,
			Error:    job.Error,
		})
	}
	return jsonResult(rows), nil
}

// handleScheduleCancel handles schedule_cancel tool calls
func (s *MCPServer) handleScheduleCancel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := request.RequireString("job_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cancelled, err := s.dispatcher.Cancel(jobID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Cancel failed: %v", err)), nil
	}
	if !cancelled {
		return mcp.NewToolResultText(fmt.Sprintf("Post %s was not pending; nothing cancelled", jobID)), nil
	}
	return jsonResult(map[string]interface{}{"cancelled": true, "job_id": jobID}), nil
}

// handleScheduleRunDue handles schedule_run_due tool calls
func (s *MCPServer) handleScheduleRunDue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	outcomes, err := s.dispatcher.RunDue(ctx, time.Now())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Run failed: %v", err)), nil
	}
	if len(outcomes) == 0 {
		return mcp.NewToolResultText("No posts due"), nil
	}
	return jsonResult(outcomes), nil
}
