package models

// API constants shared by every request.
const (
	APIVersion   = "2.18"
	PromptSource = "user"
)

// ClientCoordinates carries the optional geolocation attached to a request.
type ClientCoordinates struct {
	LocationLat float64 `json:"location_lat"`
	LocationLng float64 `json:"location_lng"`
	Name        string  `json:"name"`
}

// AskParams is the "params" object of an ask request.
type AskParams struct {
	Attachments         []string           `json:"attachments"`
	Language            string             `json:"language"`
	Timezone            string             `json:"timezone,omitempty"`
	ClientCoordinates   *ClientCoordinates `json:"client_coordinates"`
	Sources             []string           `json:"sources"`
	ModelPreference     string             `json:"model_preference"`
	Mode                string             `json:"mode"`
	SearchFocus         string             `json:"search_focus"`
	SearchRecencyFilter string             `json:"search_recency_filter,omitempty"`
	IsIncognito         bool               `json:"is_incognito"`
	UseSchematizedAPI   bool               `json:"use_schematized_api"`
	LocalSearchEnabled  bool               `json:"local_search_enabled"`
	PromptSource        string             `json:"prompt_source"`
	SendBackText        bool               `json:"send_back_text_in_streaming_api"`
	Version             string             `json:"version"`

	// Follow-up continuation. Empty on the first message of a conversation.
	LastBackendUUID string `json:"last_backend_uuid,omitempty"`
	QuerySource     string `json:"query_source,omitempty"`
	ReadWriteToken  string `json:"read_write_token,omitempty"`
}

// AskPayload is the full body POSTed to the SSE ask endpoint.
type AskPayload struct {
	Params   AskParams `json:"params"`
	QueryStr string    `json:"query_str"`
}

// UploadFileSpec describes one file in an upload-URL request, keyed by a
// client-generated UUID.
type UploadFileSpec struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Source      string `json:"source"`
	FileSize    int64  `json:"file_size"`
	ForceImage  bool   `json:"force_image"`
}

// UploadRequest asks the service for presigned upload credentials.
type UploadRequest struct {
	Files map[string]UploadFileSpec `json:"files"`
}

// UploadResult holds the presigned target for one file. Field names follow
// the upstream service exactly.
type UploadResult struct {
	S3BucketURL string            `json:"s3_bucket_url"`
	S3ObjectURL string            `json:"s3_object_url"`
	Fields      map[string]string `json:"fields"`
}

// UploadResponse maps each requested file UUID to its presigned target.
type UploadResponse struct {
	Results map[string]UploadResult `json:"results"`
}
