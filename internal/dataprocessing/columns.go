package dataprocessing

import (
	"slices"
	"strings"
)

// Role is the semantic meaning of a snapshot column.
type Role int

const (
	RoleCommodity Role = iota
	RoleNetPosition
	RoleNetChange
	RoleLongPosition
	RoleLongChange
	RoleShortPosition
	RoleShortChange
)

var roleNames = [...]string{
	RoleCommodity:     "commodity",
	RoleNetPosition:   "net_position",
	RoleNetChange:     "net_change",
	RoleLongPosition:  "long_position",
	RoleLongChange:    "long_change",
	RoleShortPosition: "short_position",
	RoleShortChange:   "short_change",
}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return "unknown"
	}
	return roleNames[r]
}

// roleAlias pairs a role with the substrings that identify it in a
// normalized header. Order matters only for header scoring output.
type roleAlias struct {
	role    Role
	aliases []string
}

var snapshotAliases = []roleAlias{
	{RoleCommodity, []string{"commodity", "asset", "market", "contract", "instrument", "symbol"}},
	{RoleNetPosition, []string{"netposition", "netpos", "totalnet", "commercialnet"}},
	{RoleNetChange, []string{"netchange", "netchg", "changeinnet"}},
	{RoleLongPosition, []string{"longposition", "longs", "buypos", "long"}},
	{RoleLongChange, []string{"longchange", "longchg", "chginlong", "changeinlong"}},
	{RoleShortPosition, []string{"shortposition", "shorts", "sellpos", "short"}},
	{RoleShortChange, []string{"shortchange", "shortchg", "chginshort", "changeinshort"}},
}

func snapshotGroups() [][]string {
	groups := make([][]string, len(snapshotAliases))
	for i, ra := range snapshotAliases {
		groups[i] = ra.aliases
	}
	return groups
}

// Unresolved marks a role that matched no column.
const Unresolved = -1

// ColumnRoleMap holds the column index of every snapshot role.
type ColumnRoleMap struct {
	Commodity     int `json:"commodity"`
	NetPosition   int `json:"net_position"`
	NetChange     int `json:"net_change"`
	LongPosition  int `json:"long_position"`
	LongChange    int `json:"long_change"`
	ShortPosition int `json:"short_position"`
	ShortChange   int `json:"short_change"`
}

// Index returns the column assigned to r.
func (m ColumnRoleMap) Index(r Role) int {
	switch r {
	case RoleCommodity:
		return m.Commodity
	case RoleNetPosition:
		return m.NetPosition
	case RoleNetChange:
		return m.NetChange
	case RoleLongPosition:
		return m.LongPosition
	case RoleLongChange:
		return m.LongChange
	case RoleShortPosition:
		return m.ShortPosition
	case RoleShortChange:
		return m.ShortChange
	}
	return Unresolved
}

func (m *ColumnRoleMap) set(r Role, idx int) {
	switch r {
	case RoleCommodity:
		m.Commodity = idx
	case RoleNetPosition:
		m.NetPosition = idx
	case RoleNetChange:
		m.NetChange = idx
	case RoleLongPosition:
		m.LongPosition = idx
	case RoleLongChange:
		m.LongChange = idx
	case RoleShortPosition:
		m.ShortPosition = idx
	case RoleShortChange:
		m.ShortChange = idx
	}
}

// ResolveColumns maps every snapshot role onto a column of the normalized
// header row. Each role takes the first header containing one of its
// aliases. Long and short change columns are then corrected by adjacency:
// exports frequently label the deltas next to "Long" and "Short" with a bare
// "Chg", which the alias pass would otherwise leave unresolved or assign to
// the net change column.
func ResolveColumns(headers []string) ColumnRoleMap {
	var m ColumnRoleMap
	for _, ra := range snapshotAliases {
		m.set(ra.role, findColumn(headers, ra.aliases))
	}
	if m.Commodity == Unresolved {
		m.Commodity = 0
	}

	var changeCols []int
	for i, h := range headers {
		if strings.Contains(h, "chg") || strings.Contains(h, "change") {
			changeCols = append(changeCols, i)
		}
	}

	if m.LongPosition != Unresolved && (m.LongChange == Unresolved || m.LongChange == m.NetChange) {
		if next := m.LongPosition + 1; slices.Contains(changeCols, next) {
			m.LongChange = next
		}
	}
	if m.ShortPosition != Unresolved &&
		(m.ShortChange == Unresolved || m.ShortChange == m.NetChange || m.ShortChange == m.LongChange) {
		if next := m.ShortPosition + 1; slices.Contains(changeCols, next) {
			m.ShortChange = next
		}
	}
	return m
}
