package model

import (
	"github.com/YaganovValera/universe-client/internal/mapper"
	"github.com/YaganovValera/universe-client/internal/schema"
)

// Market describes one exchange and its trading calendar.
type Market struct {
	Market      string
	TradeDay    int32
	DisplayName string
	TimeZone    string
	OpenTime    int64
	CloseTime   int64
	Status      int32
	Sessions    []string
	// Revisions is the raw JSON revision table.
	Revisions string
}

var marketDescriptor = Descriptor{Namespace: schema.NamespaceGlobal, TypeName: "Market"}

func (Market) Descriptor() Descriptor { return marketDescriptor }

func (Market) QualifiedName() string { return marketDescriptor.QualifiedName() }

func (m Market) Key() string {
	if m.Market != "" {
		return m.Market
	}
	return m.DisplayName
}

func (m Market) Attributes() map[string]any {
	sessions := make([]any, len(m.Sessions))
	for i, s := range m.Sessions {
		sessions[i] = s
	}
	return map[string]any{
		"market":       m.Key(),
		"trade_day":    m.TradeDay,
		"display_name": m.DisplayName,
		"time_zone":    m.TimeZone,
		"open_time":    m.OpenTime,
		"close_time":   m.CloseTime,
		"status":       m.Status,
		"sessions":     sessions,
		"revisions":    m.Revisions,
	}
}

func (Market) Bindings() []mapper.Binding[Market] {
	return []mapper.Binding[Market]{
		mapper.Market(func(m *Market) *string { return &m.Market }),
		mapper.Int32("trade_day", func(m *Market) *int32 { return &m.TradeDay }),
		mapper.String("display_name", func(m *Market) *string { return &m.DisplayName }),
		mapper.String("time_zone", func(m *Market) *string { return &m.TimeZone }),
		mapper.Int64("open_time", func(m *Market) *int64 { return &m.OpenTime }),
		mapper.Int64("close_time", func(m *Market) *int64 { return &m.CloseTime }),
		mapper.Int32("status", func(m *Market) *int32 { return &m.Status }),
		mapper.Strings("sessions", func(m *Market) *[]string { return &m.Sessions }),
		mapper.String("revisions", func(m *Market) *string { return &m.Revisions }),
	}
}
