package tracking

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const errMessageOpenSeedsFile = "open seeds file %s: %w"

// LoadSeedLinks reads the seeds file: one profile link per line, blank lines
// skipped, duplicates removed preserving first-seen order. A missing seeds file
// is a structural failure and aborts the run.
func LoadSeedLinks(seedsPath string) ([]string, error) {
	file, openErr := os.Open(seedsPath)
	if openErr != nil {
		return nil, fmt.Errorf(errMessageOpenSeedsFile, seedsPath, openErr)
	}
	defer file.Close()

	var seedLinks []string
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, exists := seen[line]; exists {
			continue
		}
		seen[line] = struct{}{}
		seedLinks = append(seedLinks, line)
	}
	return seedLinks, scanner.Err()
}
