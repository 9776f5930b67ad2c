// ABOUTME: Deterministic, seeded turn scheduler for the circle: picks the next speaker from a
// ABOUTME: fixed roster honoring forced overrides, cooldown, mention detection, and least-spoken weighting.
package scheduler

import (
	"math/rand"
	"regexp"
	"strings"
)

// HumanSlot is the reserved agent ID representing the human participant in
// the roster, when include_human is set.
const HumanSlot = "human"

// defaultHumanAliases are the bare-name and @-mention tokens that resolve to
// the human slot, per spec §4.1 step 3 and the original's hardcoded
// HUMAN_MENTIONS set. Generalized here into a configurable list (SPEC_FULL
// supplement) rather than a hardcoded constant.
var defaultHumanAliases = []string{"human", "you"}

// Scheduler selects the next speaker for a circle session. It owns a single
// seeded RNG stream; all randomness in a session flows through it so the
// selection sequence is reproducible given identical inputs.
type Scheduler struct {
	roster       []string
	cooldown     int
	humanAliases map[string]struct{}

	turnCounts     map[string]int
	recentSpeakers []string // ring, most recent at the end, capped at cooldown
	rng            *rand.Rand
}

// New builds a Scheduler over roster (agent IDs, plus HumanSlot if the
// session includes a human participant), seeded for reproducibility.
// cooldown is the number of most-recent speakers excluded from eligibility
// (k >= 0). extraHumanAliases supplements the default human-handle aliases.
func New(roster []string, seed int64, cooldown int, extraHumanAliases ...string) *Scheduler {
	aliases := make(map[string]struct{}, len(defaultHumanAliases)+len(extraHumanAliases))
	for _, a := range defaultHumanAliases {
		aliases[strings.ToLower(a)] = struct{}{}
	}
	for _, a := range extraHumanAliases {
		aliases[strings.ToLower(a)] = struct{}{}
	}

	counts := make(map[string]int, len(roster))
	for _, id := range roster {
		counts[id] = 0
	}

	return &Scheduler{
		roster:       append([]string(nil), roster...),
		cooldown:     cooldown,
		humanAliases: aliases,
		turnCounts:   counts,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// TurnCount returns how many times agentID has been selected so far.
func (s *Scheduler) TurnCount(agentID string) int {
	return s.turnCounts[agentID]
}

// RecentSpeakers returns a copy of the cooldown ring, oldest first.
func (s *Scheduler) RecentSpeakers() []string {
	return append([]string(nil), s.recentSpeakers...)
}

// ReplaySelection re-applies the bookkeeping side effects of having already
// selected agentID, without consulting mentions or the RNG. Used by resume
// (spec §4.6 step 2) to bring turnCounts/recentSpeakers back to the state
// they would have had, given the already-chosen agent sequence from the
// checkpoint.
func (s *Scheduler) ReplaySelection(agentID string) {
	s.record(agentID)
}

// SelectNext picks the next speaker. force, if non-empty and a roster
// member, bypasses all other rules (spec §4.1 step 1). Otherwise cooldown,
// mention detection, and weighted least-recently-spoken selection apply in
// order. An invalid force value is ignored and selection falls through to
// the normal rules.
func (s *Scheduler) SelectNext(lastContent string, force string) string {
	if force != "" && s.inRoster(force) {
		s.record(force)
		return force
	}

	eligible := s.eligible()

	if lastContent != "" {
		if m := s.firstEligibleMention(lastContent, eligible); m != "" {
			s.record(m)
			return m
		}
	}

	choice := s.weightedChoice(eligible)
	s.record(choice)
	return choice
}

func (s *Scheduler) inRoster(id string) bool {
	for _, r := range s.roster {
		if r == id {
			return true
		}
	}
	return false
}

// eligible computes roster - recentSpeakers, falling back to the full
// roster if that would leave nothing to choose from (small-roster
// fallback, spec §4.1 step 2).
func (s *Scheduler) eligible() []string {
	cooldownSet := make(map[string]struct{}, len(s.recentSpeakers))
	for _, sp := range s.recentSpeakers {
		cooldownSet[sp] = struct{}{}
	}

	var out []string
	for _, id := range s.roster {
		if _, blocked := cooldownSet[id]; !blocked {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), s.roster...)
	}
	return out
}

var explicitMentionRe = regexp.MustCompile(`@([A-Za-z0-9_\-]+)`)

// firstEligibleMention extracts explicit @name tokens first, then bare-name
// mentions, forms the ordered union (explicit before bare, duplicates
// removed), intersects with eligible, and returns the first match or "".
func (s *Scheduler) firstEligibleMention(content string, eligible []string) string {
	eligibleSet := make(map[string]struct{}, len(eligible))
	for _, e := range eligible {
		eligibleSet[e] = struct{}{}
	}

	var ordered []string
	seen := map[string]struct{}{}
	add := func(id string) {
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}

	for _, m := range explicitMentionRe.FindAllStringSubmatch(content, -1) {
		add(s.resolveToken(m[1]))
	}
	for _, id := range s.roster {
		add(s.bareNameMention(content, id))
	}
	if id := s.bareHumanMention(content); id != "" {
		add(id)
	}

	for _, id := range ordered {
		if _, ok := eligibleSet[id]; ok {
			return id
		}
	}
	return ""
}

// resolveToken maps an @-token to the human slot (via alias set) or to an
// agent ID by exact case-insensitive match.
func (s *Scheduler) resolveToken(token string) string {
	lower := strings.ToLower(token)
	if _, ok := s.humanAliases[lower]; ok {
		return HumanSlot
	}
	for _, id := range s.roster {
		if strings.EqualFold(id, token) {
			return id
		}
	}
	return ""
}

// bareNameMention performs the case-folded substring test for an agent ID
// appearing anywhere in content. Only the ID itself is tested; display names
// and first-name prefixes are not matched. This intentionally
// preserves the known over-matching precision issue flagged in spec §9 — an
// agent id like "orin" can match inside an unrelated word. Not "fixed".
func (s *Scheduler) bareNameMention(content, agentID string) string {
	lower := strings.ToLower(content)
	if strings.Contains(lower, strings.ToLower(agentID)) {
		return agentID
	}
	return ""
}

func (s *Scheduler) bareHumanMention(content string) string {
	lower := strings.ToLower(content)
	for alias := range s.humanAliases {
		if strings.Contains(lower, alias) {
			return HumanSlot
		}
	}
	return ""
}

// weightedChoice samples one eligible agent, weighted proportional to
// max(turnCounts)+1-turnCount(a)+1 so less-spoken agents are favored.
func (s *Scheduler) weightedChoice(eligible []string) string {
	if len(eligible) == 0 {
		return s.roster[s.rng.Intn(len(s.roster))]
	}
	if len(eligible) == 1 {
		return eligible[0]
	}

	maxCount := 0
	for _, id := range eligible {
		if c := s.turnCounts[id]; c > maxCount {
			maxCount = c
		}
	}

	weights := make([]int, len(eligible))
	total := 0
	for i, id := range eligible {
		w := maxCount + 1 - s.turnCounts[id] + 1
		weights[i] = w
		total += w
	}

	pick := s.rng.Intn(total)
	cum := 0
	for i, w := range weights {
		cum += w
		if pick < cum {
			return eligible[i]
		}
	}
	return eligible[len(eligible)-1]
}

// record updates turnCounts and appends to the cooldown ring, evicting the
// oldest entry once the ring exceeds cooldown length.
func (s *Scheduler) record(agentID string) {
	s.turnCounts[agentID]++
	if s.cooldown <= 0 {
		return
	}
	s.recentSpeakers = append(s.recentSpeakers, agentID)
	if len(s.recentSpeakers) > s.cooldown {
		s.recentSpeakers = s.recentSpeakers[len(s.recentSpeakers)-s.cooldown:]
	}
}
