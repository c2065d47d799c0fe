package engine

// DetectProgress compares metric snapshots across one iteration. It is
// true iff at least one of file, commit, or test count strictly
// increased and none decreased; a decrease means the baseline shifted
// (e.g. a branch switch) and does not count as progress.
func DetectProgress(prev, cur Metrics) bool {
	if cur.FileCount < prev.FileCount || cur.CommitCount < prev.CommitCount || cur.TestCount < prev.TestCount {
		return false
	}
	return cur.FileCount > prev.FileCount || cur.CommitCount > prev.CommitCount || cur.TestCount > prev.TestCount
}
