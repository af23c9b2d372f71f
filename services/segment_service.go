package services

import (
	"autoreply-server/models"
)

// Segment is the UI-facing queue bucket for a feedback item. It is derived
// from the item's replies on every read, never stored.
type Segment string

const (
	SegmentUnanswered Segment = "unanswered"
	SegmentPending    Segment = "pending"
	SegmentArchived   Segment = "archived"
)

// IsValidSegment checks that a segment query value is one of the known buckets
func IsValidSegment(s Segment) bool {
	return s == SegmentUnanswered || s == SegmentPending || s == SegmentArchived
}

// ClassifySegment maps a feedback item and its replies to exactly one segment:
//
//   - archived: the item is answered, or any reply has been published
//   - pending: any reply is scheduled, publishing or failed
//   - unanswered: everything else
//
// Drafted replies deliberately do not count as pending, so items under draft
// review stay visible in the main unanswered queue.
func ClassifySegment(isAnswered bool, replies []models.Reply) Segment {
	if isAnswered {
		return SegmentArchived
	}

	for _, reply := range replies {
		if reply.DeletedAt.Valid {
			continue
		}
		if reply.Status == models.ReplyStatusPublished {
			return SegmentArchived
		}
	}

	for _, reply := range replies {
		if reply.DeletedAt.Valid {
			continue
		}
		switch reply.Status {
		case models.ReplyStatusScheduled, models.ReplyStatusPublishing, models.ReplyStatusFailed:
			return SegmentPending
		}
	}

	return SegmentUnanswered
}

// ClassifyReview classifies a review using its loaded replies
func ClassifyReview(review *models.Review, replies []models.Reply) Segment {
	return ClassifySegment(review.IsAnswered, replies)
}

// ClassifyQuestion classifies a question using its loaded replies
func ClassifyQuestion(question *models.Question, replies []models.Reply) Segment {
	return ClassifySegment(question.IsAnswered, replies)
}
