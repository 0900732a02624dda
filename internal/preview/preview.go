package preview

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the preview until the user quits or ctx is done. logs may be nil.
func Run(ctx context.Context, ctrl Controller, logs LogSource, fps int, opts ...tea.ProgramOption) error {
	model := NewModel(ctrl, fps)
	if logs != nil {
		model = model.WithLogs(logs)
	}
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	program := tea.NewProgram(model, opts...)

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("preview: %w", err)
	}
	return nil
}
