package priority

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"FacilityBot/entity"
	"FacilityBot/internal/config"
	"FacilityBot/internal/lib/sl"
)

const (
	equipmentFields = "SERNUM,PARTNAME,PARTDES,CUSTNAME,CDES,PHONENUM," +
		"STATUSNAME,FAMILYNAME,FAMILYDES,FACILITYNAME,FACILITYDES"

	statusReject = "Reject"

	productionMarker   = "ebyael"
	demoMarker         = "demo"
	productionTech     = "צחי"
	defaultTechnician  = "יוסי"
	minPhoneDigits     = 7
	defaultHTTPTimeout = 30 * time.Second
)

var nonDigits = regexp.MustCompile(`[^0-9]`)

type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("priority status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("priority status %d", e.Code)
}

// Service talks to the Priority OData API.
type Service struct {
	login      string
	password   string
	baseURL    string
	technician string
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
	log        *slog.Logger
}

func NewPriorityService(conf *config.Config, logger *slog.Logger) *Service {
	if !conf.Priority.Enabled || conf.Priority.BaseURL == "" {
		return nil
	}
	timeout := conf.Priority.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return New(conf.Priority.BaseURL, conf.Priority.User, conf.Priority.Password, conf.Priority.Technician,
		&http.Client{Timeout: timeout}, logger)
}

func New(baseURL, login, password, technician string, client *http.Client, logger *slog.Logger) *Service {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Service{
		login:      login,
		password:   password,
		baseURL:    strings.TrimRight(baseURL, "/"),
		technician: technician,
		client:     client,
		breaker:    newBreaker("priority"),
		log:        logger.With(sl.Module("priority")),
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		// client errors say nothing about the health of the server
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < http.StatusInternalServerError
			}
			return err == nil
		},
	})
}

// IsDemo reports whether the configured environment is the demo company.
func (s *Service) IsDemo() bool {
	return strings.Contains(strings.ToLower(s.baseURL), demoMarker)
}

// Technician is the default technician login for new service calls.
func (s *Service) Technician() string {
	if s.technician != "" {
		return s.technician
	}
	if strings.Contains(s.baseURL, productionMarker) {
		return productionTech
	}
	return defaultTechnician
}

type equipmentRecord struct {
	SerialNumber string `json:"SERNUM"`
	PartName     string `json:"PARTNAME"`
	PartDesc     string `json:"PARTDES"`
	CustomerID   string `json:"CUSTNAME"`
	CustomerName string `json:"CDES"`
	Phone        string `json:"PHONENUM"`
	Status       string `json:"STATUSNAME"`
	FamilyName   string `json:"FAMILYNAME"`
	FamilyDesc   string `json:"FAMILYDES"`
	FacilityName string `json:"FACILITYNAME"`
	FacilityDesc string `json:"FACILITYDES"`
}

func (r equipmentRecord) entity() entity.Equipment {
	return entity.Equipment{
		SerialNumber: r.SerialNumber,
		PartName:     r.PartName,
		PartDesc:     r.PartDesc,
		CustomerID:   r.CustomerID,
		CustomerName: r.CustomerName,
		Phone:        r.Phone,
		Status:       r.Status,
		FamilyName:   r.FamilyName,
		FamilyDesc:   r.FamilyDesc,
		FacilityName: r.FacilityName,
		FacilityDesc: r.FacilityDesc,
	}
}

type equipmentResponse struct {
	Value []equipmentRecord `json:"value"`
}

// FetchBySerial looks up a device by serial number. A filter is used rather
// than a key lookup so serials with leading zeros resolve.
func (s *Service) FetchBySerial(ctx context.Context, serial string) (*entity.Equipment, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, nil
	}

	records, err := s.queryEquipment(ctx, fmt.Sprintf("SERNUM eq '%s'", quote(serial)))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		s.log.Debug("device not found", slog.String("sernum", serial))
		return nil, nil
	}

	device := records[0].entity()
	s.log.With(
		slog.String("sernum", serial),
		slog.String("custname", device.CustomerID),
	).Debug("device found")
	return &device, nil
}

// FetchByPhone lists active devices whose contact phone contains the
// caller's core digits.
func (s *Service) FetchByPhone(ctx context.Context, phone string) ([]entity.Equipment, error) {
	digits := NormalizePhone(phone)
	if len(digits) < minPhoneDigits {
		return nil, nil
	}

	records, err := s.queryEquipment(ctx, fmt.Sprintf("contains(PHONENUM, '%s')", digits))
	if err != nil {
		return nil, err
	}

	devices := make([]entity.Equipment, 0, len(records))
	for _, r := range records {
		if r.Status == statusReject {
			continue
		}
		devices = append(devices, r.entity())
	}
	return devices, nil
}

// LookupByPhone identifies a caller by the first active device registered
// to their phone.
func (s *Service) LookupByPhone(ctx context.Context, phone string) (entity.CustomerInfo, error) {
	devices, err := s.FetchByPhone(ctx, phone)
	if err != nil {
		return entity.CustomerInfo{}, err
	}
	if len(devices) == 0 {
		return entity.CustomerInfo{}, nil
	}
	d := devices[0]
	return entity.CustomerInfo{
		Name:         d.CustomerName,
		CustomerID:   d.CustomerID,
		DeviceNumber: d.SerialNumber,
	}, nil
}

func (s *Service) queryEquipment(ctx context.Context, filter string) ([]equipmentRecord, error) {
	params := url.Values{}
	params.Set("$filter", filter)
	params.Set("$select", equipmentFields)

	body, err := s.do(ctx, http.MethodGet, "/SERNUMBERS?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("query equipment: %w", err)
	}

	var resp equipmentResponse
	if err = json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode equipment: %w", err)
	}
	return resp.Value, nil
}

// CustomerExists reports whether custname is a known ERP customer.
func (s *Service) CustomerExists(ctx context.Context, custname string) bool {
	if custname == "" || custname == entity.DefaultCustomer {
		return false
	}
	_, err := s.do(ctx, http.MethodGet, fmt.Sprintf("/CUSTOMERS('%s')", url.PathEscape(quote(custname))), nil)
	if err != nil {
		s.log.Debug("customer check", slog.String("custname", custname), sl.Err(err))
		return false
	}
	return true
}

type docText struct {
	Text string `json:"TEXT"`
}

type serviceCallRequest struct {
	Customer   string   `json:"CUSTNAME"`
	Branch     string   `json:"BRANCHNAME"`
	StartDate  string   `json:"STARTDATE"`
	Technician string   `json:"TECHNICIANLOGIN,omitempty"`
	Serial     string   `json:"SERNUM,omitempty"`
	Contact    string   `json:"NAME,omitempty"`
	Phone      string   `json:"PHONENUM,omitempty"`
	Details    string   `json:"DETAILS,omitempty"`
	Text       *docText `json:"DOCTEXT_Q_2_SUBFORM,omitempty"`
}

type serviceCallResponse struct {
	DocNo string `json:"DOCNO"`
}

// CreateServiceCall opens a service call document and returns its number.
// Unknown customers are filed under the catch-all customer.
func (s *Service) CreateServiceCall(ctx context.Context, call *entity.ServiceCall) (string, error) {
	branch := call.Branch
	if branch == "" {
		branch = entity.DefaultBranch
	}
	if s.IsDemo() {
		branch = entity.DemoBranch
	}

	customer := call.CustomerNumber
	if !s.CustomerExists(ctx, customer) {
		customer = entity.DefaultCustomer
	}

	technician := call.TechnicianLogin
	if technician == "" {
		technician = s.Technician()
	}

	req := serviceCallRequest{
		Customer:   customer,
		Branch:     branch,
		StartDate:  call.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Technician: technician,
		Serial:     call.SerialNumber,
		Contact:    call.Name,
		Phone:      call.Phone,
		Details:    call.Location,
	}
	var parts []string
	for _, p := range []string{call.FaultText, call.Description} {
		if p != "" && !containsLine(parts, p) {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		req.Text = &docText{Text: strings.Join(parts, "\n")}
	}

	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode service call: %w", err)
	}

	body, err := s.do(ctx, http.MethodPost, "/DOCUMENTS_Q", data)
	if err != nil {
		return "", fmt.Errorf("create service call: %w", err)
	}

	var resp serviceCallResponse
	if err = json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode service call: %w", err)
	}

	s.log.With(
		slog.String("docno", resp.DocNo),
		slog.String("custname", customer),
		slog.String("branch", branch),
	).Info("service call created")
	return resp.DocNo, nil
}

func containsLine(parts []string, s string) bool {
	for _, p := range parts {
		if strings.Contains(p, s) {
			return true
		}
	}
	return false
}

type interfaceErrors struct {
	Form struct {
		InterfaceErrors struct {
			Text string `json:"text"`
		} `json:"InterfaceErrors"`
	} `json:"FORM"`
}

func (s *Service) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.SetBasicAuth(s.login, s.password)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("OData-Version", "4.0")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}
		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			se := &StatusError{Code: resp.StatusCode}
			var ie interfaceErrors
			if json.Unmarshal(body, &ie) == nil && ie.Form.InterfaceErrors.Text != "" {
				se.Message = ie.Form.InterfaceErrors.Text
			}
			return nil, se
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// NormalizePhone reduces a phone number to the digits Priority stores after
// the country code or trunk prefix, e.g. 972545446259 -> 545446259.
func NormalizePhone(phone string) string {
	digits := nonDigits.ReplaceAllString(phone, "")
	switch {
	case strings.HasPrefix(digits, "972") && len(digits) > 9:
		digits = digits[3:]
	case strings.HasPrefix(digits, "0") && len(digits) >= 9:
		digits = digits[1:]
	}
	return digits
}

func quote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
