// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it opens the store, builds the graph
// engine and the summary coordinator, and injects them into the tools,
// prompts and resources that depend on them. No business logic lives
// here, only wiring.
package server

import (
	"fmt"

	"github.com/HendryAvila/lodestar/internal/config"
	"github.com/HendryAvila/lodestar/internal/graph"
	"github.com/HendryAvila/lodestar/internal/logging"
	"github.com/HendryAvila/lodestar/internal/prompts"
	"github.com/HendryAvila/lodestar/internal/resources"
	"github.com/HendryAvila/lodestar/internal/store"
	"github.com/HendryAvila/lodestar/internal/summary"
	"github.com/HendryAvila/lodestar/internal/timeutil"
	"github.com/HendryAvila/lodestar/internal/tools"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools, prompts and
// resources registered. This is the single place where all dependencies
// are resolved.
//
// The returned cleanup function closes the database and must be called on
// shutdown (typically via defer).
func New(cfg config.Config, logger *zap.Logger) (*server.MCPServer, func(), error) {
	log := logging.OrNop(logger)

	weekStart, err := timeutil.ParseWeekday(cfg.Summary.WeekStart)
	if err != nil {
		return nil, noop, fmt.Errorf("summary week start: %w", err)
	}

	// --- Create shared dependencies ---

	st, err := store.New(store.Config{
		Path:            cfg.DatabasePath(),
		LiveDocumentKey: cfg.LiveDocumentKey,
		DefaultTimezone: cfg.DefaultTimezone,
	}, log)
	if err != nil {
		return nil, noop, fmt.Errorf("opening store: %w", err)
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			log.Warn("store close failed", zap.Error(err))
		}
	}

	engine := graph.NewEngine(st, log)
	coordinator := summary.NewCoordinator(st,
		summary.BulletSummarizer{
			MaxChars:         cfg.Summary.BulletMaxChars,
			EmptyPlaceholder: cfg.Summary.EmptyDayPlaceholder,
		},
		summary.Options{
			WeekStart:   weekStart,
			RawTailSize: cfg.Summary.RawTailSize,
		},
		log,
	)

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"lodestar",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	registerGraphTools(s, engine, cfg.DefaultTimezone)
	registerConversationTools(s, st, coordinator)

	// --- Register prompts ---

	briefing := prompts.NewDailyBriefingPrompt()
	s.AddPrompt(briefing.Definition(), briefing.Handle)

	graphEdit := prompts.NewGraphEditPrompt()
	s.AddPrompt(graphEdit.Definition(), graphEdit.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(engine)
	s.AddResource(resourceHandler.LiveResource(), resourceHandler.HandleLive)
	s.AddResource(resourceHandler.HierarchyResource(), resourceHandler.HandleHierarchy)

	log.Info("server ready",
		zap.String("version", Version),
		zap.String("database", cfg.DatabasePath()),
	)
	return s, cleanup, nil
}

// noop is the cleanup returned when nothing was opened.
func noop() {}

// registerGraphTools registers the graph document tools.
func registerGraphTools(s *server.MCPServer, e *graph.Engine, defaultTimezone string) {
	// --- Live document ---
	getTool := tools.NewGraphGetTool(e)
	s.AddTool(getTool.Definition(), getTool.Handle)

	patchTool := tools.NewGraphPatchTool(e)
	s.AddTool(patchTool.Definition(), patchTool.Handle)

	hierarchyTool := tools.NewGraphHierarchyTool(e)
	s.AddTool(hierarchyTool.Definition(), hierarchyTool.Handle)

	todayTool := tools.NewGraphTodayTool(e, defaultTimezone)
	s.AddTool(todayTool.Definition(), todayTool.Handle)

	// --- Versions ---
	versionGet := tools.NewVersionGetTool(e)
	s.AddTool(versionGet.Definition(), versionGet.Handle)

	versionList := tools.NewVersionListTool(e)
	s.AddTool(versionList.Definition(), versionList.Handle)

	versionRestore := tools.NewVersionRestoreTool(e)
	s.AddTool(versionRestore.Definition(), versionRestore.Handle)

	versionDefault := tools.NewVersionDefaultTool(e)
	s.AddTool(versionDefault.Definition(), versionDefault.Handle)
}

// registerConversationTools registers message recording and the summary
// pipeline tools.
func registerConversationTools(s *server.MCPServer, st *store.Store, c *summary.Coordinator) {
	recordTool := tools.NewRecordMessageTool(st)
	s.AddTool(recordTool.Definition(), recordTool.Handle)

	ancestryTool := tools.NewAncestryTool(st)
	s.AddTool(ancestryTool.Definition(), ancestryTool.Handle)

	planTool := tools.NewSummaryPlanTool(c)
	s.AddTool(planTool.Definition(), planTool.Handle)

	contextTool := tools.NewContextTool(c)
	s.AddTool(contextTool.Definition(), contextTool.Handle)
}

// serverInstructions tells the client how the tools fit together.
func serverInstructions() string {
	return `You have access to Lodestar, an objective graph and conversation memory server.

## The objective graph

The graph is one JSON document of objective nodes. Each node sits in exactly one
container ("graph": "main" or another node's id) and may list causal parents
("parents") whose progress it feeds. "percentage_of_parent" is the share of each
parent the node accounts for; true_percentage_of_total is derived on every read.

- Read it with graph_get, graph_hierarchy or graph_today.
- Change it ONLY through graph_patch with RFC 6902 operations. A patch is
  all-or-nothing: if any operation fails, or the result breaks a rule (unknown
  container, containment cycle, bad status), nothing is stored.
- Every effective change creates a version. Use graph_version_list,
  graph_version_get and graph_version_restore to look back or undo.

## Conversations

Record every message with conversation_record_message, passing the parent
message so branches stay intact. Before answering in a long conversation, call
conversation_context with the latest message id: it returns summaries of
earlier days, weeks and months plus today's messages, generating only what is
missing for the current branch.`
}
