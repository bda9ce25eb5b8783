package topics

import "strings"

// TopicMatch reports whether topic matches filter under MQTT wildcard
// rules: '+' matches exactly one level, '#' matches the remainder of the
// topic and must be the filter's last level. A topic starting with '$' is
// only matched by a filter that itself starts with '$'; a wildcard is not
// permitted as the filter's first level in that case, but it may still
// appear deeper (so "a/$b" matches "a/+").
func TopicMatch(filter, topic string) bool {
	if filter == "" || topic == "" {
		return false
	}
	if filter == topic {
		return true
	}

	filterLevels := strings.Split(filter, "/")
	topicLevels := strings.Split(topic, "/")

	if strings.HasPrefix(topic, "$") {
		if filter[0] != '$' {
			return false
		}
		if filterLevels[0] == "+" || filterLevels[0] == "#" {
			return false
		}
	}

	for i, fLevel := range filterLevels {
		if fLevel == "#" {
			return true
		}
		if i >= len(topicLevels) {
			return false
		}

		tLevel := topicLevels[i]
		if fLevel == "+" {
			continue
		}
		if fLevel != tLevel {
			return false
		}
	}

	return len(filterLevels) == len(topicLevels)
}
