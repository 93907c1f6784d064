package breakpoint

import "sort"

// UserBP is a client-visible breakpoint (spec §3 "Breakpoint (user-visible)").
type UserBP struct {
	ID string

	Location string // address expression; mutually exclusive with File/Line/Column
	File     string
	Line     int
	Column   int

	Condition   string
	IgnoreCount int
	HitCount    int
	Enabled     bool

	PlantedCount int // number of instruction slots currently realized
	Error        string
	Unsupported  []string

	Deleted bool

	// Refs is the set of channels that have registered a reference to
	// this breakpoint; it is removed when this set empties.
	Refs map[string]bool

	// last-broadcast status tuple, used to suppress redundant events.
	statusUnsupported bool
	statusError       bool
	statusPlanted     bool
}

// Props is the closed set of breakpoint properties accepted over the
// wire (spec §4.F). Unknown keys observed alongside these are captured
// separately as Unsupported.
type Props struct {
	ID          string
	Location    string
	File        string
	Line        int
	Column      int
	Condition   string
	IgnoreCount *int
	Enabled     *bool
}

// ParseProps decodes a generic property map into Props plus any keys
// outside the closed set, mirroring the JSON boundary described in §4.F.
func ParseProps(raw map[string]any) (Props, []string) {
	known := map[string]bool{
		"ID": true, "Location": true, "File": true, "Line": true,
		"Column": true, "Condition": true, "IgnoreCount": true, "Enabled": true,
	}
	var p Props
	var unsupported []string
	for k, v := range raw {
		if !known[k] {
			unsupported = append(unsupported, k)
			continue
		}
		switch k {
		case "ID":
			p.ID, _ = v.(string)
		case "Location":
			p.Location, _ = v.(string)
		case "File":
			p.File, _ = v.(string)
		case "Line":
			p.Line = toInt(v)
		case "Column":
			p.Column = toInt(v)
		case "Condition":
			p.Condition, _ = v.(string)
		case "IgnoreCount":
			n := toInt(v)
			p.IgnoreCount = &n
		case "Enabled":
			b, _ := v.(bool)
			p.Enabled = &b
		}
	}
	sort.Strings(unsupported)
	return p, unsupported
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// copyProperties merges src into dst field-by-field (spec §4.F
// "copy_properties"), returning whether anything actually changed.
func copyProperties(dst *UserBP, p Props, unsupported []string) (changed bool) {
	if p.Location != "" && p.Location != dst.Location {
		dst.Location = p.Location
		changed = true
	}
	if p.File != "" && p.File != dst.File {
		dst.File = p.File
		changed = true
	}
	if p.Line != 0 && p.Line != dst.Line {
		dst.Line = p.Line
		changed = true
	}
	if p.Column != 0 && p.Column != dst.Column {
		dst.Column = p.Column
		changed = true
	}
	if p.Condition != dst.Condition {
		dst.Condition = p.Condition
		changed = true
	}
	if p.IgnoreCount != nil && *p.IgnoreCount != dst.IgnoreCount {
		dst.IgnoreCount = *p.IgnoreCount
		changed = true
	}
	if p.Enabled != nil && *p.Enabled != dst.Enabled {
		dst.Enabled = *p.Enabled
		changed = true
	}
	if !stringSliceEqual(dst.Unsupported, unsupported) {
		dst.Unsupported = unsupported
		changed = true
	}
	if len(dst.Unsupported) > 0 {
		dst.Error = "Unsupported breakpoint properties: " + joinStrings(dst.Unsupported)
	}
	return changed
}

func joinStrings(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Registry indexes user breakpoints by id and by referring channel
// (spec §4.F).
type Registry struct {
	byID      map[string]*UserBP
	byChannel map[string]map[string]bool
	nextSeq   uint64
}

// NewRegistry creates an empty breakpoint registry.
func NewRegistry() *Registry {
	return &Registry{byID: map[string]*UserBP{}, byChannel: map[string]map[string]bool{}}
}

// Set replaces channel's entire ref set with the given properties list,
// per spec §4.F "set (replaces this channel's ref set wholesale)".
func (r *Registry) Set(channel string, propsList []map[string]any) []*UserBP {
	for id := range r.byChannel[channel] {
		r.removeRef(channel, id)
	}
	out := make([]*UserBP, 0, len(propsList))
	for _, raw := range propsList {
		out = append(out, r.upsert(channel, raw))
	}
	return out
}

// Add upserts a single breakpoint for channel (spec §4.F "add").
func (r *Registry) Add(channel string, raw map[string]any) *UserBP {
	return r.upsert(channel, raw)
}

// Change upserts by id, merging properties (spec §4.F "change").
func (r *Registry) Change(channel string, raw map[string]any) *UserBP {
	return r.upsert(channel, raw)
}

func (r *Registry) upsert(channel string, raw map[string]any) *UserBP {
	p, unsupported := ParseProps(raw)
	id := p.ID
	if id == "" {
		r.nextSeq++
		id = genBPID(r.nextSeq)
	}
	bp, ok := r.byID[id]
	if !ok {
		bp = &UserBP{ID: id, Enabled: true, Refs: map[string]bool{}}
		r.byID[id] = bp
	}
	copyProperties(bp, p, unsupported)
	bp.Deleted = false
	r.addRef(channel, id)
	return bp
}

func (r *Registry) addRef(channel, id string) {
	if r.byChannel[channel] == nil {
		r.byChannel[channel] = map[string]bool{}
	}
	r.byChannel[channel][id] = true
	if bp, ok := r.byID[id]; ok {
		bp.Refs[channel] = true
	}
}

func (r *Registry) removeRef(channel, id string) {
	delete(r.byChannel[channel], id)
	if bp, ok := r.byID[id]; ok {
		delete(bp.Refs, channel)
		if len(bp.Refs) == 0 {
			bp.Deleted = true
		}
	}
}

// Enable/Disable flip the enabled bit for the given ids.
func (r *Registry) Enable(ids []string, enabled bool) {
	for _, id := range ids {
		if bp, ok := r.byID[id]; ok {
			bp.Enabled = enabled
		}
	}
}

// Remove drops channel's reference to each id; the breakpoint itself is
// only flagged deleted once every channel's ref is gone (spec §3
// "removed when its refs empty"), and is purged from the registry by
// the replant engine.
func (r *Registry) Remove(channel string, ids []string) {
	for _, id := range ids {
		r.removeRef(channel, id)
	}
}

// ChannelClosed cancels every breakpoint ref held by channel (spec §5
// "a channel close cancels that channel's breakpoint refs").
func (r *Registry) ChannelClosed(channel string) {
	for id := range r.byChannel[channel] {
		r.removeRef(channel, id)
	}
	delete(r.byChannel, channel)
}

// GetBreakpointIDs returns every known breakpoint id for channel.
func (r *Registry) GetBreakpointIDs(channel string) []string {
	ids := make([]string, 0, len(r.byChannel[channel]))
	for id := range r.byChannel[channel] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetProperties returns the breakpoint for id, if present.
func (r *Registry) GetProperties(id string) (*UserBP, bool) {
	bp, ok := r.byID[id]
	return bp, ok
}

// StatusTuple is the last-broadcast (unsupported, error, planted) tuple
// used to suppress redundant status events (spec §3, §4.G step 3).
type StatusTuple struct {
	Unsupported bool
	Error       bool
	Planted     int
}

// GetStatus returns the current status tuple for id.
func (r *Registry) GetStatus(id string) (StatusTuple, bool) {
	bp, ok := r.byID[id]
	if !ok {
		return StatusTuple{}, false
	}
	return StatusTuple{
		Unsupported: len(bp.Unsupported) > 0,
		Error:       bp.Error != "",
		Planted:     bp.PlantedCount,
	}, true
}

// Capabilities reports the fixed per-breakpoint capability set (spec §6).
func Capabilities() map[string]bool {
	return map[string]bool{
		"ID": true, "Location": true, "File": true, "Line": true,
		"Column": true, "IgnoreCount": true, "Condition": true,
	}
}

// All returns every non-purged breakpoint.
func (r *Registry) All() []*UserBP {
	out := make([]*UserBP, 0, len(r.byID))
	for _, bp := range r.byID {
		out = append(out, bp)
	}
	return out
}

// Purge removes a breakpoint entirely once it has no refs and has been
// reconciled out of the break-instruction table.
func (r *Registry) Purge(id string) {
	delete(r.byID, id)
}

func genBPID(seq uint64) string {
	const digits = "0123456789"
	if seq < 10 {
		return "bp-" + string(digits[seq])
	}
	// Simple base-10 rendering without importing strconv at this call site.
	buf := make([]byte, 0, 20)
	for seq > 0 {
		buf = append([]byte{digits[seq%10]}, buf...)
		seq /= 10
	}
	return "bp-" + string(buf)
}
