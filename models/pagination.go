package models

// PaginatedThreads represents a paginated list of threads
type PaginatedThreads struct {
	Threads      []*Thread `json:"threads"`
	Page         uint32    `json:"page"`
	PageSize     uint32    `json:"page_size"`
	TotalPages   uint32    `json:"total_pages"`
	TotalThreads uint32    `json:"total_threads"`
	HasNext      bool      `json:"has_next"`
	HasPrev      bool      `json:"has_prev"`
}

// NewPaginatedThreads creates a new paginated threads response
func NewPaginatedThreads(threads []*Thread, page, pageSize, total uint32) *PaginatedThreads {
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	return &PaginatedThreads{
		Threads:      threads,
		Page:         page,
		PageSize:     pageSize,
		TotalPages:   totalPages,
		TotalThreads: total,
		HasNext:      page < totalPages,
		HasPrev:      page > 1,
	}
}
