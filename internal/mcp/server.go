package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"note_draft_get": {
		def:     draftGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDraftGet },
	},
	"note_draft_update": {
		def:     draftUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDraftUpdate },
	},
	"note_draft_clear": {
		def:     draftClearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDraftClear },
	},
	"note_list_edit": {
		def:     listEditToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListEdit },
	},
	"note_exam_template": {
		def:     examTemplateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExamTemplate },
	},
	"note_birth_date": {
		def:     birthDateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBirthDate },
	},
	"note_parse": {
		def:     parseToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleParse },
	},
	"note_analyze": {
		def:     analyzeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAnalyze },
	},
	"note_apply_analysis": {
		def:     applyAnalysisToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleApplyAnalysis },
	},
	"note_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"note_payload_encode": {
		def:     payloadEncodeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePayloadEncode },
	},
	"note_payload_ingest": {
		def:     payloadIngestToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePayloadIngest },
	},
	"note_status": {
		def:     statusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatus },
	},
	"history_list": {
		def:     historyListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryList },
	},
	"history_get": {
		def:     historyGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryGet },
	},
	"history_load": {
		def:     historyLoadToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryLoad },
	},
	"history_delete": {
		def:     historyDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryDelete },
	},
	"history_clear": {
		def:     historyClearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryClear },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the note tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"clinote",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps)

	disabled := make(map[string]bool)
	if deps.Config != nil {
		for _, name := range deps.Config.DisabledTools {
			disabled[name] = true
		}
		for _, name := range ValidateDisabledTools(deps.Config.DisabledTools) {
			h.logger.Warn("unknown tool in disabled_tools", zap.String("tool", name))
		}
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(deps Deps, version string) error {
	s := NewServer(deps, version)
	return server.ServeStdio(s)
}
