package response

import "cognito-backend/service/query"

type QueryResponse struct {
	Answer  string         `json:"answer"`
	Results []query.Result `json:"results"`
}
