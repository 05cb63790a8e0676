package scheduler

import (
	"strings"

	"clipflow/internal/config"
	"clipflow/internal/domain"
)

// fallback content keys are truncated so trailing hashtag noise on one side
// of the join does not break the match
const contentKeyLen = 200

// ResolvedPost is a remote post annotated with its local clip type.
type ResolvedPost struct {
	Post     domain.RemotePost
	Platform string
	ClipType domain.ClipType
}

// Resolution carries resolved posts plus match counters for observability.
type Resolution struct {
	Posts          []ResolvedPost
	IDMatched      int
	ContentMatched int
	Unmatched      int
}

// Resolver reconciles remote posts back to local clip types using the stored
// remote post id, with a normalized-content fallback for posts created before
// the id join existed. Resolution is read-only.
type Resolver struct {
	Default domain.ClipType
}

// Resolve maps every remote post to a clip type. Posts matching neither join
// get the default clip type and increment the Unmatched counter.
func (r Resolver) Resolve(posts []domain.RemotePost, published []domain.PublishedItem) Resolution {
	byID := make(map[string]domain.ClipType, len(published))
	byContent := make(map[string]domain.ClipType, len(published))
	for _, p := range published {
		if p.Item.LatePostID != nil && *p.Item.LatePostID != "" {
			byID[*p.Item.LatePostID] = p.Item.ClipType
		}
		if p.PostContent != "" {
			key := contentKey(p.Item.Platform, p.PostContent)
			if _, exists := byContent[key]; !exists {
				byContent[key] = p.Item.ClipType
			}
		}
	}

	fallback := r.Default
	if fallback == "" {
		fallback = domain.ClipShort
	}

	res := Resolution{Posts: make([]ResolvedPost, 0, len(posts))}
	for _, post := range posts {
		platform := config.CanonicalPlatform(post.Platform())
		clipType, counter := fallback, &res.Unmatched
		if ct, ok := byID[post.ID]; ok {
			clipType, counter = ct, &res.IDMatched
		} else if ct, ok := byContent[contentKey(platform, post.Content)]; ok {
			clipType, counter = ct, &res.ContentMatched
		}
		*counter++
		res.Posts = append(res.Posts, ResolvedPost{Post: post, Platform: platform, ClipType: clipType})
	}
	return res
}

func contentKey(platform, content string) string {
	return config.CanonicalPlatform(platform) + "\x00" + normalizeContent(content)
}

func normalizeContent(s string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(s)), " ")
	if runes := []rune(norm); len(runes) > contentKeyLen {
		return string(runes[:contentKeyLen])
	}
	return norm
}
