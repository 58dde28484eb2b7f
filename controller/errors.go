package controller

import "errors"

var (
	ErrParseRequest = errors.New("failed to parse request")

	ErrUserRegister  = errors.New("failed to register user")
	ErrGenerateToken = errors.New("failed to generate token")
	ErrUserLogin     = errors.New("failed to login")

	ErrSubmitURL        = errors.New("failed to submit source url")
	ErrGetAudioFile     = errors.New("failed to get audio file")
	ErrUploadAudio      = errors.New("failed to upload audio")
	ErrSubmitTranscript = errors.New("failed to submit transcript")

	ErrGetEpisodes     = errors.New("failed to get episodes")
	ErrEpisodeNotFound = errors.New("episode not found")
	ErrDeleteEpisode   = errors.New("failed to delete episode")
	ErrGetPreSignedURL = errors.New("failed to get presigned url")

	ErrTaskNotFound = errors.New("task not found")
	ErrGetTask      = errors.New("failed to get task")

	ErrQuery = errors.New("failed to query knowledge base")
)
