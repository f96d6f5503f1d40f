package models

// CapturedRequest - запросная часть перехваченного обмена, как её отдаёт
// MITM-слой. Content хранит сырые байты тела, Text - его строковое
// представление (может быть пустым).
type CapturedRequest struct {
	Method     string
	PrettyURL  string
	PrettyHost string
	Path       string
	Headers    map[string]string
	Text       string
	Content    []byte
}

// CapturedResponse - ответная часть обмена.
type CapturedResponse struct {
	Headers map[string]string
	Text    string
}

// CapturedFlow - пара запрос/ответ с границы перехвата. Неизменяема после
// захвата; потребляется ровно один раз.
type CapturedFlow struct {
	Request  CapturedRequest
	Response *CapturedResponse
}

// TaskPacket - сериализованная форма задачи в очереди сканирования.
type TaskPacket struct {
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	Headers         map[string]string `json:"headers"`
	Body            string            `json:"body"`
	ResponseHeaders map[string]string `json:"response_headers"`
	ResponseBody    string            `json:"response_body"`
	Fingerprint     string            `json:"fingerprint"`
	ProjectName     string            `json:"project_name,omitempty"`
}
