package bskykit

// SessionInfo is the com.atproto.server.createSession output.
type SessionInfo struct {
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
	Handle     string `json:"handle"`
	Did        string `json:"did"`
	Email      string `json:"email,omitempty"`
	Active     *bool  `json:"active,omitempty"`
}

type createSessionInput struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// FeedResponse is the app.bsky.feed.getTimeline output.
type FeedResponse struct {
	Feed   []FeedViewPost `json:"feed"`
	Cursor string         `json:"cursor,omitempty"`
}

type FeedViewPost struct {
	Post   PostView     `json:"post"`
	Reason *FeedReason  `json:"reason,omitempty"`
	Reply  *ReplyRefRaw `json:"reply,omitempty"`
}

type FeedReason struct {
	Type string       `json:"$type"`
	By   *ProfileView `json:"by,omitempty"`
}

// ReplyRefRaw carries the parent and root of a reply as they were sent.
type ReplyRefRaw struct {
	Root   *PostView `json:"root,omitempty"`
	Parent *PostView `json:"parent,omitempty"`
}

type PostView struct {
	URI         string       `json:"uri"`
	CID         string       `json:"cid"`
	Author      ProfileView  `json:"author"`
	Record      PostRecord   `json:"record"`
	ReplyCount  int64        `json:"replyCount,omitempty"`
	RepostCount int64        `json:"repostCount,omitempty"`
	LikeCount   int64        `json:"likeCount,omitempty"`
	IndexedAt   string       `json:"indexedAt,omitempty"`
	Labels      []LabelValue `json:"labels,omitempty"`
}

type LabelValue struct {
	Src string `json:"src"`
	URI string `json:"uri"`
	Val string `json:"val"`
}

// PostRecord is an app.bsky.feed.post record.
type PostRecord struct {
	Type      string   `json:"$type,omitempty"`
	Text      string   `json:"text"`
	CreatedAt string   `json:"createdAt"`
	Langs     []string `json:"langs,omitempty"`
}

type ProfileView struct {
	Did         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

// Profile is the app.bsky.actor.getProfile output.
type Profile struct {
	Did            string `json:"did"`
	Handle         string `json:"handle"`
	DisplayName    string `json:"displayName,omitempty"`
	Description    string `json:"description,omitempty"`
	Avatar         string `json:"avatar,omitempty"`
	Banner         string `json:"banner,omitempty"`
	FollowersCount int64  `json:"followersCount"`
	FollowsCount   int64  `json:"followsCount"`
	PostsCount     int64  `json:"postsCount"`
	IndexedAt      string `json:"indexedAt,omitempty"`
	CreatedAt      string `json:"createdAt,omitempty"`
}

// PostReference points at a record written by CreatePost.
type PostReference struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type createRecordInput struct {
	Repo       string     `json:"repo"`
	Collection string     `json:"collection"`
	Record     PostRecord `json:"record"`
}
