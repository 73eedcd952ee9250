package model

import "time"

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Placeholder fills every display string of a section whose lookup failed.
const Placeholder = "Error"

type BalanceInfo struct {
	Balance        string `json:"balance"`
	CostPerRequest string `json:"cost_per_request"`
	RowsAvailable  string `json:"rows_available"`
	Status         Status `json:"status"`
	Error          string `json:"error,omitempty"`
}

type DatabaseInfo struct {
	ConnectionStatus     string  `json:"connection_status"`
	ResponseTime         string  `json:"response_time,omitempty"`
	UniqueCompaniesCount *uint64 `json:"unique_companies_count"`
	Status               Status  `json:"status"`
	Error                string  `json:"error,omitempty"`
}

type QuotaAccountInfo struct {
	AccountName       string `json:"account_name"`
	Date              string `json:"date"`
	RemainingRequests int64  `json:"remaining_requests"`
}

type QuotaInfo struct {
	Accounts []QuotaAccountInfo `json:"accounts"`
	Status   Status             `json:"status"`
	Error    string             `json:"error,omitempty"`
}

type SystemInfo struct {
	RAMPercent  float64 `json:"ram_percent"`
	DiskPercent float64 `json:"disk_percent"`
	CPUPercent  float64 `json:"cpu_percent"`
	RAMUsedGB   string  `json:"ram_used_gb"`
	DiskUsedGB  string  `json:"disk_used_gb"`
	Status      Status  `json:"status"`
	Error       string  `json:"error,omitempty"`
}

type AllServicesResponse struct {
	XMLRiver  BalanceInfo  `json:"xmlriver"`
	Database  DatabaseInfo `json:"database"`
	DaData    QuotaInfo    `json:"dadata"`
	System    SystemInfo   `json:"system"`
	FetchedAt time.Time    `json:"fetched_at"`
}
