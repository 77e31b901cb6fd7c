package services

import "sort"

// Engagement is the like/dislike total of one user's posts inside a challenge.
type Engagement struct {
	Likes    int64 `json:"likes"`
	Dislikes int64 `json:"dislikes"`
}

// RankedUser is one computed leaderboard row. Never persisted.
type RankedUser struct {
	UserID        string  `json:"user_id"`
	TotalLikes    int64   `json:"total_likes"`
	TotalDislikes int64   `json:"total_dislikes"`
	RankScore     float64 `json:"rank_score"`
	Position      int     `json:"position"`
	Rank          int     `json:"rank"`
}

// RankedMoodUser is one row of the global mood leaderboard.
type RankedMoodUser struct {
	UserID    string  `json:"user_id"`
	MoodCount int64   `json:"mood_count"`
	RankScore float64 `json:"rank_score"`
	Position  int     `json:"position"`
	Rank      int     `json:"rank"`
}

// MoodCount is a user's lifetime number of accepted check-ins.
type MoodCount struct {
	UserID string
	Count  int64
}

// EngagementScore is 100*(likes-dislikes)/(likes+dislikes+1), or 0 with no engagement.
func EngagementScore(likes, dislikes int64) float64 {
	total := likes + dislikes
	if total == 0 {
		return 0
	}
	return 100 * float64(likes-dislikes) / float64(total+1)
}

// MoodScore scales count against the set maximum to 0..100.
func MoodScore(count, maxCount int64) float64 {
	if maxCount <= 0 {
		return 0
	}
	return 100 * float64(count) / float64(maxCount)
}

// RankByEngagement scores every user and orders them by score, descending.
// Ties keep input order, so callers must pass userIDs in a deterministic order.
// lookup may be nil; missing users count as zero engagement.
func RankByEngagement(userIDs []string, lookup func(userID string) Engagement) []RankedUser {
	out := make([]RankedUser, len(userIDs))
	for i, id := range userIDs {
		var e Engagement
		if lookup != nil {
			e = lookup(id)
		}
		out[i] = RankedUser{
			UserID:        id,
			TotalLikes:    e.Likes,
			TotalDislikes: e.Dislikes,
			RankScore:     EngagementScore(e.Likes, e.Dislikes),
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].RankScore > out[j].RankScore })
	assignStandings(len(out),
		func(i int) float64 { return out[i].RankScore },
		func(i, position, rank int) { out[i].Position, out[i].Rank = position, rank },
	)
	return out
}

// RankByMoodCount applies the same ordering to lifetime mood counts.
func RankByMoodCount(counts []MoodCount) []RankedMoodUser {
	var maxCount int64
	for _, c := range counts {
		if c.Count > maxCount {
			maxCount = c.Count
		}
	}

	out := make([]RankedMoodUser, len(counts))
	for i, c := range counts {
		out[i] = RankedMoodUser{
			UserID:    c.UserID,
			MoodCount: c.Count,
			RankScore: MoodScore(c.Count, maxCount),
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].RankScore > out[j].RankScore })
	assignStandings(len(out),
		func(i int) float64 { return out[i].RankScore },
		func(i, position, rank int) { out[i].Position, out[i].Rank = position, rank },
	)
	return out
}

// assignStandings walks an already sorted sequence: position is 1..n,
// rank is the competition rank (1,1,3,4,4,6).
func assignStandings(n int, score func(int) float64, set func(i, position, rank int)) {
	rank := 0
	for i := 0; i < n; i++ {
		if i == 0 || score(i) != score(i-1) {
			rank = i + 1
		}
		set(i, i+1, rank)
	}
}

// Page describes one slice of a ranked sequence.
type Page struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
	Offset     int `json:"-"`
	End        int `json:"-"`
}

// Paginate clamps page into [1, totalPages] and returns the slice bounds.
// Ranking must already cover the full set; paging only cuts it.
func Paginate(total, page, pageSize int) Page {
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	offset := (page - 1) * pageSize
	if offset > total {
		offset = total
	}
	end := offset + pageSize
	if end > total {
		end = total
	}
	return Page{Total: total, Page: page, PageSize: pageSize, TotalPages: totalPages, Offset: offset, End: end}
}
