// deepsignature/lsp_handlers_workspace.go
// Contains LSP method handlers related to workspace events (e.g., configuration changes).
package deepsignature

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/jsonrpc2"
)

// ============================================================================
// LSP Workspace Method Handlers
// ============================================================================

// handleDidChangeConfiguration merges the client's "deepsignature" settings
// section over the current configuration. Clients that send the settings
// without the section key are accepted too.
func (s *Server) handleDidChangeConfiguration(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, params DidChangeConfigurationParams, logger *slog.Logger) (any, error) {
	configLogger := logger.With("op", "didChangeConfiguration")
	configLogger.Info("Handling workspace/didChangeConfiguration")

	fileCfg, err := settingsSection(params.Settings)
	if err != nil {
		configLogger.Error("Failed to unmarshal workspace/didChangeConfiguration settings", "error", err, "raw_settings", string(params.Settings))
		return nil, nil
	}

	newConfig := s.helper.GetCurrentConfig()
	mergedFields := fileCfg.mergeInto(&newConfig)
	if mergedFields == 0 {
		configLogger.Debug("No relevant configuration changes found in workspace/didChangeConfiguration notification")
		return nil, nil
	}

	configLogger.Info("Applying configuration changes from client", "fields_merged", mergedFields)
	if err := s.ApplyConfig(newConfig, "client"); err != nil {
		s.sendShowMessage(conn, MessageTypeError, fmt.Sprintf("Failed to apply configuration update: %v", err))
	}
	return nil, nil
}

// settingsSection extracts our FileConfig from a settings payload.
func settingsSection(raw json.RawMessage) (FileConfig, error) {
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(raw, &nested); err != nil {
		return FileConfig{}, err
	}
	var fileCfg FileConfig
	if section, ok := nested[settingsSectionName]; ok {
		if err := json.Unmarshal(section, &fileCfg); err != nil {
			return FileConfig{}, fmt.Errorf("settings section %q: %w", settingsSectionName, err)
		}
		return fileCfg, nil
	}
	if err := json.Unmarshal(raw, &fileCfg); err != nil {
		return FileConfig{}, err
	}
	return fileCfg, nil
}
