package crawler

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"strings"
)

// robotsRules is a minimal robots.txt ruleset: disallowed path prefixes for
// the User-agent: * group, which is all §4.1 requires ("Respect robots.txt
// if respect_robots_txt is set").
type robotsRules struct {
	disallow []string
}

func (r *robotsRules) allows(path string) bool {
	for _, prefix := range r.disallow {
		if prefix == "" {
			continue
		}
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

// robotsAllowed fetches (and caches per host) robots.txt, then reports
// whether rawURL's path is allowed.
func (c *Crawler) robotsAllowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true, err
	}
	host := strings.ToLower(u.Host)

	c.mu.Lock()
	rules, cached := c.robots[host]
	c.mu.Unlock()
	if !cached {
		robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
		result, ferr := c.fetcher.Fetch(ctx, robotsURL)
		if ferr != nil {
			// No robots.txt or unreachable: default to allow, matching
			// most crawlers' fail-open behavior for a missing file.
			rules = &robotsRules{}
		} else {
			rules = parseRobots(string(result.Body))
		}
		c.mu.Lock()
		c.robots[host] = rules
		c.mu.Unlock()
	}
	return rules.allows(u.Path), nil
}

// parseRobots extracts the Disallow prefixes under the "User-agent: *"
// group. Group-specific agents and Allow overrides are out of scope for
// this politeness gate (§4.1 only requires a disallow/allow decision, not
// full RFC 9309 precedence rules).
func parseRobots(body string) *robotsRules {
	rules := &robotsRules{}
	scanner := bufio.NewScanner(strings.NewReader(body))
	inWildcardGroup := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		val := strings.TrimSpace(parts[1])
		switch key {
		case "user-agent":
			inWildcardGroup = val == "*"
		case "disallow":
			if inWildcardGroup && val != "" {
				rules.disallow = append(rules.disallow, val)
			}
		}
	}
	return rules
}
