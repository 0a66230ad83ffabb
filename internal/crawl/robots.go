package crawl

import (
	"net/url"
	"strings"
)

// robotsRules is a minimal robots.txt evaluator: it collects the
// Disallow/Allow prefixes of the group matching our user agent (falling back
// to the wildcard group) and answers by longest-prefix match.
type robotsRules struct {
	rules []robotsRule
}

type robotsRule struct {
	path  string
	allow bool
}

func allowAllRobots() *robotsRules { return &robotsRules{} }

func parseRobots(body string) *robotsRules {
	agentToken := strings.ToLower(strings.SplitN(userAgent, "/", 2)[0])

	type group struct {
		agents []string
		rules  []robotsRule
	}
	var groups []*group
	var current *group
	inAgentRun := false

	for _, line := range strings.Split(body, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		field, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		field = strings.ToLower(strings.TrimSpace(field))
		value = strings.TrimSpace(value)

		switch field {
		case "user-agent":
			if !inAgentRun {
				current = &group{}
				groups = append(groups, current)
				inAgentRun = true
			}
			current.agents = append(current.agents, strings.ToLower(value))
		case "allow", "disallow":
			inAgentRun = false
			if current == nil {
				continue
			}
			if value == "" {
				// Empty Disallow permits everything.
				continue
			}
			current.rules = append(current.rules, robotsRule{path: value, allow: field == "allow"})
		default:
			inAgentRun = false
		}
	}

	pick := func(match func(agent string) bool) *group {
		for _, g := range groups {
			for _, a := range g.agents {
				if match(a) {
					return g
				}
			}
		}
		return nil
	}

	chosen := pick(func(a string) bool { return a != "*" && strings.Contains(agentToken, a) })
	if chosen == nil {
		chosen = pick(func(a string) bool { return a == "*" })
	}
	if chosen == nil {
		return allowAllRobots()
	}
	return &robotsRules{rules: chosen.rules}
}

func (r *robotsRules) Allowed(rawURL string) bool {
	if len(r.rules) == 0 {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	bestLen := -1
	allowed := true
	for _, rule := range r.rules {
		if strings.HasPrefix(path, rule.path) && len(rule.path) > bestLen {
			bestLen = len(rule.path)
			allowed = rule.allow
		}
	}
	return allowed
}
