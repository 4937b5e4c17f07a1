// Copyright 2024-2026 Aiku AI

package hydration

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/tidwall/gjson"
	"go.mau.fi/util/exsync"

	"github.com/aiku/upryzing-go/pkg/permissions"
)

// ParseBits reads a 64-bit permission or flag field. The server sends these
// either as JSON numbers or as decimal strings; both are parsed from their
// textual form so values above 2^53 survive intact.
func ParseBits(v gjson.Result) (uint64, error) {
	var text string
	switch v.Type {
	case gjson.Null:
		return 0, nil
	case gjson.String:
		text = strings.TrimSpace(v.Str)
	case gjson.Number:
		text = v.Raw
	default:
		return 0, fmt.Errorf("unexpected %s value for bitfield", v.Type)
	}
	n, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse bitfield %q: %w", text, err)
	}
	return n, nil
}

// bits is ParseBits for compute functions. A malformed field reads as zero
// and is reported on the context logger.
func bits(v gjson.Result, ctx Context) uint64 {
	n, err := ParseBits(v)
	if err != nil && ctx != nil {
		if log := ctx.Logger(); log != nil {
			log.Warn().Err(err).Str("value", v.Raw).Msg("Malformed bitfield read as zero")
		}
	}
	return n
}

// ParseOverride reads an {"a": allow, "d": deny} pair.
func ParseOverride(v gjson.Result, ctx Context) permissions.Override {
	return permissions.Override{
		Allow: bits(v.Get("a"), ctx),
		Deny:  bits(v.Get("d"), ctx),
	}
}

// CreatedAt returns the creation time encoded in an entity id.
func CreatedAt(id string) (time.Time, bool) {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(parsed.Time()), true
}

func optString(v gjson.Result) *string {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	s := v.String()
	return &s
}

func stringList(v gjson.Result) []string {
	arr := v.Array()
	if len(arr) == 0 {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		out = append(out, item.String())
	}
	return out
}

func stringSet(v gjson.Result) *exsync.Set[string] {
	return exsync.NewSetWithItems(stringList(v))
}

func optTime(v gjson.Result) *time.Time {
	if v.Type != gjson.String {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.Str)
	if err != nil {
		return nil
	}
	return &t
}
