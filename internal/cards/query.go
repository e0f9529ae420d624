package cards

import "strings"

// FormatQuery expands a resource keyword into an Anki search query.
//
//	deckcurrent -> deck:current
//	isdue       -> is:due
//	tag:x       -> tag:x
//
// Keywords already carrying the "deck:" or "is:" qualifier are returned as is,
// so a full query such as "is:due" is not rewritten to "is::due". This is how
// get_due_cards and get_new_cards reuse the retriever with their queries.
func FormatQuery(keyword string) string {
	switch {
	case strings.HasPrefix(keyword, "deck:"), strings.HasPrefix(keyword, "is:"):
		return keyword
	case strings.HasPrefix(keyword, "deck"):
		return "deck:" + keyword[len("deck"):]
	case strings.HasPrefix(keyword, "is"):
		return "is:" + keyword[len("is"):]
	}
	return keyword
}
