package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/orbit-gateway/orbit/api"
	"github.com/orbit-gateway/orbit/gatewaytypes"
	"github.com/orbit-gateway/orbit/llm"
	"github.com/orbit-gateway/orbit/orchestrator"
	"github.com/orbit-gateway/orbit/types"
)

// =============================================================================
// 💬 聊天接口 Handler
// =============================================================================

// ChatHandler 聊天接口处理器，背后由 orchestrator 驱动检索增强生成
type ChatHandler struct {
	orchestrator *orchestrator.Orchestrator
	adapters     []gatewaytypes.AdapterDescriptor
	logger       *zap.Logger
}

// NewChatHandler 创建聊天处理器。adapters 是网关已启用的全部适配器，
// 单次请求可以通过 api.ChatRequest.Adapters 按名字筛选其中的子集。
func NewChatHandler(orch *orchestrator.Orchestrator, adapters []gatewaytypes.AdapterDescriptor, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		orchestrator: orch,
		adapters:     adapters,
		logger:       logger,
	}
}

// HandleCompletion 处理聊天补全请求
// @Summary 聊天完成
// @Description 发送聊天完成请求
// @Tags 聊天
// @Accept json
// @Produce json
// @Param request body api.ChatRequest true "聊天请求"
// @Success 200 {object} api.ChatResponse "聊天响应"
// @Failure 400 {object} Response "无效请求"
// @Failure 500 {object} Response "内部错误"
// @Security ApiKeyAuth
// @Router /v1/chat/completions [post]
func (h *ChatHandler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.ChatRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if err := h.validateChatRequest(&req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	orchReq := h.convertToOrchestratorRequest(&req)

	ctx := r.Context()
	var timeout time.Duration
	if req.Timeout != "" {
		if d, err := time.ParseDuration(req.Timeout); err == nil {
			timeout = d
		}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := h.orchestrator.Chat(ctx, orchReq)
	duration := time.Since(start)

	if err != nil {
		h.handleOrchestratorError(w, err)
		return
	}

	apiResp := h.convertToAPIResponse(req.Model, resp)

	h.logger.Info("chat completion",
		zap.String("model", req.Model),
		zap.Int("sources", len(resp.Sources)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("duration", duration),
	)

	WriteSuccess(w, apiResp)
}

// HandleStream 处理流式聊天请求
// @Summary 流式聊天完成
// @Description 发送流式聊天完成请求
// @Tags 聊天
// @Accept json
// @Produce text/event-stream
// @Param request body api.ChatRequest true "聊天请求"
// @Success 200 {string} string "SSE 流"
// @Failure 400 {object} Response "无效请求"
// @Failure 500 {object} Response "内部错误"
// @Security ApiKeyAuth
// @Router /v1/chat/completions/stream [post]
func (h *ChatHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("transport") == "ws" {
		h.HandleWebSocketStream(w, r)
		return
	}

	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.ChatRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if err := h.validateChatRequest(&req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	orchReq := h.convertToOrchestratorRequest(&req)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // 禁用 nginx 缓冲

	ctx := r.Context()
	stream, err := h.orchestrator.Stream(ctx, orchReq)
	if err != nil {
		h.handleOrchestratorError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		err := types.NewError(types.ErrInternalError, "streaming not supported")
		WriteError(w, err, h.logger)
		return
	}

	for chunk := range stream {
		if chunk.Err != nil {
			h.logger.Error("stream error", zap.Error(chunk.Err))
			// SSE 错误事件 — 使用 json.Marshal 转义错误消息，防止 JSON 注入
			errPayload, _ := json.Marshal(map[string]string{"error": chunk.Err.Error()})
			w.Write([]byte("event: error\n"))
			w.Write([]byte("data: "))
			w.Write(errPayload)
			w.Write([]byte("\n\n"))
			flusher.Flush()
			return
		}

		apiChunk := h.convertToAPIStreamChunk(&chunk)

		w.Write([]byte("data: "))
		if err := writeJSON(w, apiChunk); err != nil {
			h.logger.Error("failed to write chunk", zap.Error(err))
			return
		}
		w.Write([]byte("\n\n"))
		flusher.Flush()
	}

	w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}

// HandleWebSocketStream 以 WebSocket 承载流式聊天，作为 SSE 的替代传输方式
// (?transport=ws)：客户端连接后发送一个 JSON 编码的 api.ChatRequest，随后
// 以文本帧接收每个 api.StreamChunk，最后以 close 帧结束。
func (h *ChatHandler) HandleWebSocketStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	var req api.ChatRequest
	if err := wsjson.Read(ctx, conn, &req); err != nil {
		conn.Close(websocket.StatusInvalidFramePayloadData, "invalid request")
		return
	}

	if err := h.validateChatRequest(&req); err != nil {
		_ = wsjson.Write(ctx, conn, map[string]string{"error": err.Message})
		conn.Close(websocket.StatusPolicyViolation, "invalid request")
		return
	}

	orchReq := h.convertToOrchestratorRequest(&req)
	stream, err := h.orchestrator.Stream(ctx, orchReq)
	if err != nil {
		h.writeWebSocketError(ctx, conn, err)
		conn.Close(websocket.StatusInternalError, "orchestrator error")
		return
	}

	for chunk := range stream {
		if chunk.Err != nil {
			h.logger.Error("websocket stream error", zap.Error(chunk.Err))
			h.writeWebSocketError(ctx, conn, chunk.Err)
			conn.Close(websocket.StatusInternalError, "stream error")
			return
		}

		apiChunk := h.convertToAPIStreamChunk(&chunk)
		if err := wsjson.Write(ctx, conn, apiChunk); err != nil {
			h.logger.Warn("websocket write failed", zap.Error(err))
			return
		}
	}

	conn.Close(websocket.StatusNormalClosure, "done")
}

func (h *ChatHandler) writeWebSocketError(ctx context.Context, conn *websocket.Conn, err error) {
	_ = wsjson.Write(ctx, conn, map[string]string{"error": err.Error()})
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// validateChatRequest 验证聊天请求
func (h *ChatHandler) validateChatRequest(req *api.ChatRequest) *types.Error {
	if req.Model == "" {
		return types.NewError(types.ErrInvalidRequest, "model is required")
	}

	if len(req.Messages) == 0 {
		return types.NewError(types.ErrInvalidRequest, "messages cannot be empty")
	}

	if req.Temperature < 0 || req.Temperature > 2 {
		return types.NewError(types.ErrInvalidRequest, "temperature must be between 0 and 2")
	}

	if req.TopP < 0 || req.TopP > 1 {
		return types.NewError(types.ErrInvalidRequest, "top_p must be between 0 and 1")
	}

	return nil
}

// selectAdapters narrows h.adapters down to the names req asked for. An
// empty req.Adapters means "use everything the gateway has enabled".
func (h *ChatHandler) selectAdapters(req *api.ChatRequest) []gatewaytypes.AdapterDescriptor {
	if len(req.Adapters) == 0 {
		return h.adapters
	}
	wanted := make(map[string]bool, len(req.Adapters))
	for _, name := range req.Adapters {
		wanted[name] = true
	}
	out := make([]gatewaytypes.AdapterDescriptor, 0, len(req.Adapters))
	for _, a := range h.adapters {
		if wanted[a.Name] {
			out = append(out, a)
		}
	}
	return out
}

// convertToOrchestratorRequest 转换为 orchestrator 请求
func (h *ChatHandler) convertToOrchestratorRequest(req *api.ChatRequest) orchestrator.Request {
	messages := make([]types.Message, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = types.Message{
			Role:       types.Role(msg.Role),
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCalls:  msg.ToolCalls,
			ToolCallID: msg.ToolCallID,
		}
	}

	return orchestrator.Request{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Adapters:    h.selectAdapters(req),
	}
}

// convertToAPIResponse 转换为 API 响应
func (h *ChatHandler) convertToAPIResponse(model string, resp *orchestrator.Response) *api.ChatResponse {
	return &api.ChatResponse{
		Model: model,
		Choices: []api.ChatChoice{
			{
				Index:        0,
				FinishReason: "stop",
				Message: api.Message{
					Role:       string(resp.Message.Role),
					Content:    resp.Message.Content,
					Name:       resp.Message.Name,
					ToolCalls:  resp.Message.ToolCalls,
					ToolCallID: resp.Message.ToolCallID,
				},
			},
		},
		Usage:     convertUsage(resp.Usage),
		CreatedAt: time.Now(),
		Sources:   convertSources(resp.Sources),
	}
}

// convertSources 转换检索到的上下文条目
func convertSources(items []gatewaytypes.ContextItem) []api.ContextItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]api.ContextItem, len(items))
	for i, item := range items {
		out[i] = api.ContextItem{
			Content:       item.Content,
			Metadata:      item.Metadata,
			Confidence:    item.Confidence,
			SourceAdapter: item.SourceAdapter,
			SourceURL:     item.SourceURL,
		}
	}
	return out
}

// convertUsage 转换使用统计
func convertUsage(usage llm.ChatUsage) api.ChatUsage {
	return api.ChatUsage{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}
}

// convertToAPIStreamChunk 转换流式块
func (h *ChatHandler) convertToAPIStreamChunk(chunk *orchestrator.Chunk) *api.StreamChunk {
	out := &api.StreamChunk{
		Delta: api.Message{
			Role:       string(chunk.Delta.Role),
			Content:    chunk.Delta.Content,
			Name:       chunk.Delta.Name,
			ToolCalls:  chunk.Delta.ToolCalls,
			ToolCallID: chunk.Delta.ToolCallID,
		},
		Sources: convertSources(chunk.Sources),
	}
	if chunk.Done {
		out.FinishReason = "stop"
	}
	return out
}

// handleOrchestratorError 处理 orchestrator 错误
func (h *ChatHandler) handleOrchestratorError(w http.ResponseWriter, err error) {
	if typedErr, ok := err.(*types.Error); ok {
		WriteError(w, typedErr, h.logger)
		return
	}

	switch {
	case errors.Is(err, orchestrator.ErrBlocked):
		WriteError(w, types.NewError(types.ErrForbidden, err.Error()), h.logger)
	case errors.Is(err, orchestrator.ErrEmptyMessages):
		WriteError(w, types.NewError(types.ErrInvalidRequest, err.Error()), h.logger)
	default:
		internalErr := types.NewError(types.ErrInternalError, "orchestrator error").
			WithCause(err).
			WithRetryable(false)
		WriteError(w, internalErr, h.logger)
	}
}

// writeJSON 写入 JSON（不包含响应头）
func writeJSON(w http.ResponseWriter, data any) error {
	encoder := json.NewEncoder(w)
	return encoder.Encode(data)
}
