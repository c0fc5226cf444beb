// Package rules implements pattern-keyed processor dispatch: deciding which
// registered processors apply to a node and in what order.
//
// # Pattern conventions
//
//   - `readme.txt` - exact filename match
//   - `*.log` - glob pattern matching
//   - `data/` - directory-only matching (trailing slash)
//   - `logs/**/*.log` - recursive matching, `**` spans any number of
//     intermediate path segments
//   - `.` - the run root itself
//
// # Rules
//
// A rule couples a pattern with a priority, a config mapping and up to three
// ordered processor-name lists: processors run at node entry (inline),
// pre_processors run just before them, post_processors run at node exit
// after every descendant has been processed.
//
// # Resolution
//
// For a node, every matching rule contributes its lists to the pre, inline
// and post buckets. Each bucket is sorted by descending priority, stable on
// ties, so rules of equal priority execute in declaration order. No
// deduplication is performed: two rules naming the same processor make it
// run twice, possibly with different configs. The earlier top-tier-only
// behavior is available as an explicit opt-in policy.
package rules
