package models

// ImageDetail is the per-image part of a multi-image OCR result.
type ImageDetail struct {
	Filename    string  `json:"filename"`
	Content     string  `json:"content"`
	Confidence  float64 `json:"confidence"`
	ContentType string  `json:"contentType"`
}

// OCRMetadata carries sizes and counts reported alongside extracted text.
type OCRMetadata struct {
	Filename      string `json:"filename,omitempty"`
	OriginalSize  int    `json:"originalSize,omitempty"`
	ProcessedSize int    `json:"processedSize,omitempty"`
	TextLength    int    `json:"textLength"`
	ImageCount    int    `json:"imageCount,omitempty"`
	ProcessedAt   string `json:"processedAt,omitempty"`
	TestMode      bool   `json:"testMode,omitempty"`
}

// OCRResult is the outcome of text extraction from one or more images.
type OCRResult struct {
	ExtractedText    string        `json:"extractedText"`
	Confidence       float64       `json:"confidence"`
	ImageDetails     []ImageDetail `json:"imageDetails,omitempty"`
	CombinedAnalysis string        `json:"combinedAnalysis,omitempty"`
	Metadata         OCRMetadata   `json:"metadata"`
	Attempts         int           `json:"-"`
}

// UploadedImage is an image received from a client, before preprocessing.
type UploadedImage struct {
	Filename string
	MIMEType string
	Data     []byte
}

// BatchResult records the outcome of one image group in a batch upload.
type BatchResult struct {
	BatchIndex    int    `json:"batchIndex"`
	ImageCount    int    `json:"imageCount"`
	Success       bool   `json:"success"`
	ExtractedText string `json:"extractedText,omitempty"`
	Error         string `json:"error,omitempty"`
}

// BatchOutcome is the aggregate result of processing all groups of a batch upload.
type BatchOutcome struct {
	CombinedText     string        `json:"extractedText"`
	BatchResults     []BatchResult `json:"batchResults"`
	ProcessedBatches int           `json:"processedBatches"`
	FailedBatches    int           `json:"failedBatches"`
	TotalImages      int           `json:"totalImages"`
}

// AllFailed reports whether no group succeeded.
func (o BatchOutcome) AllFailed() bool {
	return o.ProcessedBatches > 0 && o.FailedBatches == o.ProcessedBatches
}
