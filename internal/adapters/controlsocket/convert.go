package controlsocket

import (
	"fmt"
	"time"

	"github.com/acdtunes/fleetd/internal/adapters/persistence"
)

func descriptorFromModel(m *persistence.ContainerModel) ContainerDescriptor {
	d := ContainerDescriptor{
		ID:            m.ID,
		PlayerID:      m.PlayerID,
		Type:          m.ContainerType,
		Status:        m.Status,
		RestartPolicy: m.RestartPolicy,
		RestartCount:  m.RestartCount,
		Config:        m.Config,
		ExitCode:      m.ExitCode,
		ExitReason:    m.ExitReason,
	}
	if m.StartedAt != nil {
		s := m.StartedAt.UTC().Format(time.RFC3339)
		d.StartedAt = &s
	}
	if m.StoppedAt != nil {
		s := m.StoppedAt.UTC().Format(time.RFC3339)
		d.StoppedAt = &s
	}
	return d
}

func logLinesFromEntries(entries []persistence.ContainerLogEntry) []LogLine {
	lines := make([]LogLine, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, LogLine{
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Level:     e.Level,
			Message:   e.Message,
		})
	}
	return lines
}

func parseSince(since *string) (*time.Time, error) {
	if since == nil || *since == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *since)
	if err != nil {
		return nil, fmt.Errorf("invalid since timestamp: %w", err)
	}
	return &t, nil
}
