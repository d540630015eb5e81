// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import "strings"

// FindReferencesSection returns the lines under a "References" or
// "Bibliography" heading in Markdown content, up to the next heading of the
// same or a higher level. When the document has no such heading the whole
// content is returned, so plain reference lists can be passed directly.
func FindReferencesSection(content string) string {
	lines := strings.Split(content, "\n")
	var collecting bool
	var level int
	var sectionLines []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if l := headingLevel(trimmed); l > 0 {
			if collecting {
				if l <= level {
					break
				}
			} else if isReferencesHeading(trimmed) {
				collecting = true
				level = l
				continue
			}
		}

		if collecting {
			sectionLines = append(sectionLines, line)
		}
	}

	if !collecting {
		return content
	}
	return strings.Join(sectionLines, "\n")
}

// headingLevel returns the ATX heading level of a line (1 for "#", 2 for
// "##", ...) or 0 when the line is not a heading.
func headingLevel(line string) int {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n == 0 || n > 6 {
		return 0
	}
	if n < len(line) && line[n] != ' ' && line[n] != '\t' {
		return 0
	}
	return n
}

func isReferencesHeading(line string) bool {
	heading := strings.ToLower(strings.TrimSpace(strings.TrimLeft(line, "#")))
	heading = strings.Trim(heading, "*_: ")
	return strings.Contains(heading, "references") || strings.Contains(heading, "bibliography")
}
