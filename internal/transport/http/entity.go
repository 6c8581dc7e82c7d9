package httpt

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type AddImageResponse struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" form:"status"`
}
