package model

import (
	"strconv"

	"github.com/YaganovValera/universe-client/internal/mapper"
	"github.com/YaganovValera/universe-client/internal/schema"
)

// SampleQuote is one OHLC bar.
type SampleQuote struct {
	TimeTag     int64
	Granularity int32
	Market      string
	Code        string
	Open        float64
	Close       float64
	High        float64
	Low         float64
	Volume      int64
	Turnover    float64
}

var sampleQuoteDescriptor = Descriptor{Namespace: schema.NamespaceGlobal, TypeName: "SampleQuote"}

func (SampleQuote) Descriptor() Descriptor { return sampleQuoteDescriptor }

func (SampleQuote) QualifiedName() string { return sampleQuoteDescriptor.QualifiedName() }

func (q SampleQuote) Key() string {
	return q.Market + "." + q.Code + "@" + strconv.FormatInt(q.TimeTag, 10)
}

// ChangeRatio returns (close-open)/open, or 0 when open is 0.
func (q SampleQuote) ChangeRatio() float64 {
	if q.Open == 0 {
		return 0
	}
	return (q.Close - q.Open) / q.Open
}

func (q SampleQuote) Attributes() map[string]any {
	return map[string]any{
		"time":         TimeOf(q.TimeTag).Format("2006-01-02T15:04:05.000Z07:00"),
		"granularity":  q.Granularity,
		"market":       q.Market,
		"code":         q.Code,
		"open":         q.Open,
		"close":        q.Close,
		"high":         q.High,
		"low":          q.Low,
		"volume":       q.Volume,
		"turnover":     q.Turnover,
		"change_ratio": q.ChangeRatio(),
	}
}

func (SampleQuote) Bindings() []mapper.Binding[SampleQuote] {
	return []mapper.Binding[SampleQuote]{
		mapper.TimeTag(func(q *SampleQuote) *int64 { return &q.TimeTag }),
		mapper.Granularity(func(q *SampleQuote) *int32 { return &q.Granularity }),
		mapper.Market(func(q *SampleQuote) *string { return &q.Market }),
		mapper.Code(func(q *SampleQuote) *string { return &q.Code }),
		mapper.Double("open", func(q *SampleQuote) *float64 { return &q.Open }),
		mapper.Double("close", func(q *SampleQuote) *float64 { return &q.Close }),
		mapper.Double("high", func(q *SampleQuote) *float64 { return &q.High }),
		mapper.Double("low", func(q *SampleQuote) *float64 { return &q.Low }),
		mapper.Int64("volume", func(q *SampleQuote) *int64 { return &q.Volume }),
		mapper.Double("turnover", func(q *SampleQuote) *float64 { return &q.Turnover }),
	}
}
