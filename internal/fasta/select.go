package fasta

import "strings"

// LongestMatching streams path once and returns the longest record whose
// description contains tag (case-sensitive substring). Ties keep the first
// record encountered: the comparison against the running best is strictly
// greater. The second return is false when no record matched; that is a
// normal outcome, not an error.
func LongestMatching(path, tag string) (Record, bool, error) {
	var (
		best  Record
		found bool
	)
	err := ParseFile(path, func(r Record) error {
		if !containsTag(r.Description, tag) {
			return nil
		}
		if !found || r.Len() > best.Len() {
			best = r
			found = true
		}
		return nil
	})
	if err != nil {
		return Record{}, false, err
	}
	return best, found, nil
}

func containsTag(desc, tag string) bool {
	if tag == "" {
		return true
	}
	return strings.Contains(desc, tag)
}
