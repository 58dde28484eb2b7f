package response

import "time"

type EpisodeResponse struct {
	ID        uint      `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	SourceURL string    `json:"source_url,omitempty"`
	Status    string    `json:"status"`
	Summary   string    `json:"summary,omitempty"`
}

type ListEpisodesResponse struct {
	Total    int64             `json:"total"`
	Episodes []EpisodeResponse `json:"episodes"`
}

type EpisodeDetailResponse struct {
	EpisodeResponse
	ChunkCount int `json:"chunk_count"`
}

type DownloadURLResponse struct {
	URL string `json:"url"`
}
