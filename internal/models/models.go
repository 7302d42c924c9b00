package models

import "time"

// Collection names shared by the repositories and the read-model pipelines.
const (
	CollectionUsers         = "users"
	CollectionVideos        = "videos"
	CollectionComments      = "comments"
	CollectionTweets        = "tweets"
	CollectionLikes         = "likes"
	CollectionSubscriptions = "subscriptions"
	CollectionPlaylists     = "playlists"
)

// User represents a registered account. Password and RefreshToken never leave the service.
type User struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	FullName       string     `json:"fullName"`
	Password       string     `json:"-"`
	Avatar         string     `json:"avatar"`
	AvatarID       string     `json:"-"`
	CoverImage     string     `json:"coverImage,omitempty"`
	CoverImageID   string     `json:"-"`
	WatchHistory   []string   `json:"watchHistory"`
	RefreshToken   string     `json:"-"`
	SessionEndedAt *time.Time `json:"-"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// OwnerRef returns the user's own identifier; a user owns their account.
func (u User) OwnerRef() string { return u.ID }

// Video is an uploaded media item owned by a channel.
type Video struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	VideoFile   string    `json:"videoFile"`
	VideoFileID string    `json:"-"`
	Thumbnail   string    `json:"thumbnail"`
	ThumbnailID string    `json:"-"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	IsPublished bool      `json:"isPublished"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OwnerRef implements ownership.Owned.
func (v Video) OwnerRef() string { return v.OwnerID }

// Comment is a text reply attached to a video.
type Comment struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"videoId"`
	OwnerID   string    `json:"ownerId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OwnerRef implements ownership.Owned.
func (c Comment) OwnerRef() string { return c.OwnerID }

// Tweet is a short text post published on a channel.
type Tweet struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OwnerRef implements ownership.Owned.
func (t Tweet) OwnerRef() string { return t.OwnerID }

// TargetKind identifies which entity a like points at.
type TargetKind string

const (
	TargetVideo   TargetKind = "video"
	TargetComment TargetKind = "comment"
	TargetTweet   TargetKind = "tweet"
)

// Valid reports whether the kind is one of the likeable entities.
func (k TargetKind) Valid() bool {
	switch k {
	case TargetVideo, TargetComment, TargetTweet:
		return true
	default:
		return false
	}
}

// LikeTarget names exactly one likeable entity.
type LikeTarget struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

// Like records that a user liked a target.
type Like struct {
	ID        string     `json:"id"`
	LikedBy   string     `json:"likedBy"`
	Target    LikeTarget `json:"target"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Subscription records that SubscriberID follows ChannelID.
type Subscription struct {
	ID           string    `json:"id"`
	SubscriberID string    `json:"subscriberId"`
	ChannelID    string    `json:"channelId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Playlist is an ordered set of video references curated by its owner.
// VideoIDs may reference videos that have since been deleted.
type Playlist struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	VideoIDs    []string  `json:"videos"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OwnerRef implements ownership.Owned.
func (p Playlist) OwnerRef() string { return p.OwnerID }

// SessionTokens contains the access and refresh tokens returned to clients.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
