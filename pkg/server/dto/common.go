package dto

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DeviceInfo reports the device inventory in health responses.
type DeviceInfo struct {
	AcceleratorAvailable bool   `json:"accelerator_available"`
	AcceleratorCount     int    `json:"accelerator_count"`
	CurrentIndex         *int   `json:"current_index,omitempty"`
	AllocatedBytes       uint64 `json:"allocated_bytes"`
}

// HealthResponse reports service and model state.
type HealthResponse struct {
	Status      string     `json:"status"`
	ModelLoaded bool       `json:"model_loaded"`
	Model       string     `json:"model"`
	FP16        bool       `json:"fp16"`
	Device      DeviceInfo `json:"device"`
}

// UnloadResponse confirms a model unload.
type UnloadResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}
