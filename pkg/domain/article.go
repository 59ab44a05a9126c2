package domain

// Article represents a normalized news item from any source.
// UniqueID is source-prefixed (rss_<link> or json_<id>) and stable across
// runs for the same underlying item, which is what makes dedup work.
type Article struct {
	UniqueID string
	Title    string
	Content  string
	Link     string
	Date     string // source-native date string, empty when the source has none
	Source   string
}

// RewrittenPost is the rewrite service output ready for publishing.
// Content carries the rewritten body plus the appended attribution block.
type RewrittenPost struct {
	Title   string
	Content string
}
