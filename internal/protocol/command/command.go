// Package command holds the deployment-defined command ids of the
// streaming protocol.
package command

import (
	"fmt"
	"reflect"
)

// Table maps each symbolic command to its numeric id on the wire.
type Table struct {
	Handshake           int32 `mapstructure:"handshake" json:"handshake"`
	RouteKeepalive      int32 `mapstructure:"route_keepalive" json:"route_keepalive"`
	SchemaDefinition    int32 `mapstructure:"schema_definition" json:"schema_definition"`
	MarketStatus        int32 `mapstructure:"market_status" json:"market_status"`
	UniverseRevisionReq int32 `mapstructure:"universe_revision_req" json:"universe_revision_req"`
	UniverseRevisionRes int32 `mapstructure:"universe_revision_res" json:"universe_revision_res"`
	UniverseSeedsReq    int32 `mapstructure:"universe_seeds_req" json:"universe_seeds_req"`
	UniverseSeedsRes    int32 `mapstructure:"universe_seeds_res" json:"universe_seeds_res"`
	FetchByCodeReq      int32 `mapstructure:"fetch_by_code_req" json:"fetch_by_code_req"`
	FetchByCodeRes      int32 `mapstructure:"fetch_by_code_res" json:"fetch_by_code_res"`
	FetchByTimeReq      int32 `mapstructure:"fetch_by_time_req" json:"fetch_by_time_req"`
	FetchByTimeRes      int32 `mapstructure:"fetch_by_time_res" json:"fetch_by_time_res"`
}

// Default returns the ids used by the reference gateway.
func Default() Table {
	return Table{
		Handshake:           20512,
		RouteKeepalive:      20480,
		SchemaDefinition:    20513,
		MarketStatus:        20517,
		UniverseRevisionReq: 20483,
		UniverseRevisionRes: 20484,
		UniverseSeedsReq:    20485,
		UniverseSeedsRes:    20486,
		FetchByCodeReq:      20487,
		FetchByCodeRes:      20488,
		FetchByTimeReq:      20489,
		FetchByTimeRes:      20490,
	}
}

// Validate checks that every id is set and no two commands share one.
// Commands are checked in declaration order.
func (t Table) Validate() error {
	seen := make(map[int32]string, numCommands)
	for _, e := range t.entries() {
		if e.id == 0 {
			return fmt.Errorf("command: %s id is not set", e.name)
		}
		if other, dup := seen[e.id]; dup {
			return fmt.Errorf("command: %s and %s share id %d", other, e.name, e.id)
		}
		seen[e.id] = e.name
	}
	return nil
}

// Name returns the symbolic name of id, or "UNKNOWN(<id>)". Hot paths
// should build a Names once instead.
func (t Table) Name(id int32) string {
	for _, e := range t.entries() {
		if e.id == id {
			return e.name
		}
	}
	return unknown(id)
}

// Names is a reverse lookup from id to symbolic name.
type Names map[int32]string

// Names builds the reverse lookup of t. When two commands share an id the
// first declared one wins, as in Name.
func (t Table) Names() Names {
	out := make(Names, numCommands)
	for _, e := range t.entries() {
		if _, ok := out[e.id]; !ok {
			out[e.id] = e.name
		}
	}
	return out
}

// Name returns the symbolic name of id, or "UNKNOWN(<id>)".
func (n Names) Name(id int32) string {
	if name, ok := n[id]; ok {
		return name
	}
	return unknown(id)
}

func unknown(id int32) string { return fmt.Sprintf("UNKNOWN(%d)", id) }

// Keys returns the config keys of every command with their ids.
func (t Table) Keys() map[string]int32 {
	out := make(map[string]int32, numCommands)
	rt := reflect.TypeOf(t)
	rv := reflect.ValueOf(t)
	for i := 0; i < rt.NumField(); i++ {
		out[rt.Field(i).Tag.Get("mapstructure")] = int32(rv.Field(i).Int())
	}
	return out
}

const numCommands = 12

type entry struct {
	name string
	id   int32
}

func (t Table) entries() [numCommands]entry {
	return [numCommands]entry{
		{"HANDSHAKE", t.Handshake},
		{"ROUTE_KEEPALIVE", t.RouteKeepalive},
		{"SCHEMA_DEFINITION", t.SchemaDefinition},
		{"MARKET_STATUS", t.MarketStatus},
		{"UNIVERSE_REVISION_REQ", t.UniverseRevisionReq},
		{"UNIVERSE_REVISION_RES", t.UniverseRevisionRes},
		{"UNIVERSE_SEEDS_REQ", t.UniverseSeedsReq},
		{"UNIVERSE_SEEDS_RES", t.UniverseSeedsRes},
		{"FETCH_BY_CODE_REQ", t.FetchByCodeReq},
		{"FETCH_BY_CODE_RES", t.FetchByCodeRes},
		{"FETCH_BY_TIME_REQ", t.FetchByTimeReq},
		{"FETCH_BY_TIME_RES", t.FetchByTimeRes},
	}
}
