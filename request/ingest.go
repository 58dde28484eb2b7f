package request

type SubmitURLRequest struct {
	URL string `json:"url" binding:"required,url"`
}

type SubmitTranscriptRequest struct {
	Transcript string `json:"transcript" binding:"required"`
}

type QueryRequest struct {
	Question string `json:"question" binding:"required"`
	TopK     int    `json:"top_k" binding:"omitempty,min=1,max=50"`
}
