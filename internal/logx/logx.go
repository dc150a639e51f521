package logx

import (
	"context"

	"pkt.systems/termdeck/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	workspaceKey contextKey = iota
	tabKey
	paneKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithWorkspace annotates the logger with the workspace id unless the
// context already carries it.
func WithWorkspace(ctx context.Context, workspace schema.WorkspaceID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if workspace == "" {
		return log
	}
	if current, ok := ctx.Value(workspaceKey).(schema.WorkspaceID); ok && current == workspace {
		return log
	}
	return log.With("workspace", workspace)
}

// WithTab annotates the logger with the tab id unless the context already
// carries it.
func WithTab(ctx context.Context, tabID schema.TabID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if tabID == "" {
		return log
	}
	if current, ok := ctx.Value(tabKey).(schema.TabID); ok && current == tabID {
		return log
	}
	return log.With("tab", tabID)
}

// WithTabPane annotates the logger with tab and pane identifiers.
func WithTabPane(ctx context.Context, tabID schema.TabID, paneID schema.PaneID) pslog.Logger {
	log := WithTab(ctx, tabID)
	if paneID == "" {
		return log
	}
	if current, ok := ctx.Value(paneKey).(schema.PaneID); ok && current == paneID {
		return log
	}
	return log.With("pane", paneID)
}

// WithProvider annotates the logger with session provider metadata.
func WithProvider(log pslog.Logger, state schema.SessionState) pslog.Logger {
	if state.ProviderID != "" {
		log = log.With("provider", state.ProviderID)
	}
	if state.ProjectPath != "" {
		log = log.With("project_path", state.ProjectPath)
	}
	return log
}

// ContextWithWorkspace stores the workspace marker for log de-duplication.
func ContextWithWorkspace(ctx context.Context, workspace schema.WorkspaceID) context.Context {
	if ctx == nil || workspace == "" {
		return ctx
	}
	return context.WithValue(ctx, workspaceKey, workspace)
}

// ContextWithTabPane stores tab/pane markers for log de-duplication.
func ContextWithTabPane(ctx context.Context, tabID schema.TabID, paneID schema.PaneID) context.Context {
	if ctx == nil {
		return ctx
	}
	if tabID != "" {
		ctx = context.WithValue(ctx, tabKey, tabID)
	}
	if paneID != "" {
		ctx = context.WithValue(ctx, paneKey, paneID)
	}
	return ctx
}

// ContextWithTabPaneLogger attaches the logger and tab/pane markers.
func ContextWithTabPaneLogger(ctx context.Context, log pslog.Logger, tabID schema.TabID, paneID schema.PaneID) context.Context {
	return ContextWithTabPane(pslog.ContextWithLogger(ctx, log), tabID, paneID)
}

// Detach returns a background context carrying the logger and markers of
// src, for work that must outlive the request that started it.
func Detach(src context.Context) context.Context {
	dst := context.Background()
	if src == nil {
		return dst
	}
	dst = pslog.ContextWithLogger(dst, pslog.Ctx(src))
	if workspace, ok := src.Value(workspaceKey).(schema.WorkspaceID); ok {
		dst = ContextWithWorkspace(dst, workspace)
	}
	tab, _ := src.Value(tabKey).(schema.TabID)
	pane, _ := src.Value(paneKey).(schema.PaneID)
	return ContextWithTabPane(dst, tab, pane)
}
