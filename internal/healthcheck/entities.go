package healthcheck

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Entity names accepted by the orchestrator.
const (
	EntityEscrows      = "escrows"
	EntityListings     = "listings"
	EntityClients      = "clients"
	EntityAppointments = "appointments"
	EntityLeads        = "leads"
)

// NonExistentID is a well-formed id that no backend record uses.
const NonExistentID = "00000000-0000-0000-0000-000000000000"

// FieldView selects which required-field set an event payload is checked against.
type FieldView string

const (
	ViewCompact  FieldView = "compact"
	ViewDetailed FieldView = "detailed"
)

// Stamp carries the per-run values used to make created records unique.
type Stamp struct {
	Suffix string
	Today  string
}

// NewStamp derives a stamp from t.
func NewStamp(t time.Time) Stamp {
	return Stamp{Suffix: fmt.Sprintf("%d", t.UnixMilli()), Today: t.Format("2006-01-02")}
}

// NamedQuery is a search test: a display name and the raw query string.
type NamedQuery struct {
	Name  string
	Query string
}

// NamedBody is a creation test: a display name and the request body.
type NamedBody struct {
	Name string
	Body map[string]any
}

// Probe is a read of one sub-resource of a created record.
type Probe struct {
	Name   string
	Suffix string
}

// EntitySpec declares everything a suite needs to exercise one entity.
type EntitySpec struct {
	Name string
	// Title is the singular display name used in test names.
	Title string
	// EventType is the entityType carried by push-channel events.
	EventType string
	Path      string

	Create        func(Stamp) map[string]any
	Update        map[string]any
	Searches      func(Stamp) []NamedQuery
	MissingFields map[string]any
	UpdateMissing map[string]any
	EdgeCases     func(Stamp) []NamedBody
	Widgets       []Probe

	// ArchiveMethod is the verb used on <path>/<id>/archive.
	ArchiveMethod string

	CompactFields  []string
	DetailedFields []string
}

// RecordPath returns the path of one record.
func (e EntitySpec) RecordPath(id string) string {
	return e.Path + "/" + id
}

// ArchivePath returns the archive endpoint for id.
func (e EntitySpec) ArchivePath(id string) string {
	return e.RecordPath(id) + "/archive"
}

// RequiredFields returns the field set for view; detailed is a superset of compact.
func (e EntitySpec) RequiredFields(view FieldView) []string {
	if view == ViewDetailed {
		return append(append([]string(nil), e.CompactFields...), e.DetailedFields...)
	}
	return append([]string(nil), e.CompactFields...)
}

func (e EntitySpec) archiveMethod() string {
	if e.ArchiveMethod == "" {
		return http.MethodPatch
	}
	return e.ArchiveMethod
}

// EntityRecord is a decoded record or event payload.
type EntityRecord map[string]any

// Missing lists the fields that are not present in the record.
func (r EntityRecord) Missing(fields []string) []string {
	var missing []string
	for _, f := range fields {
		if _, ok := r[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

func standardSearches(statusParam, statusValue, searchName string) []NamedQuery {
	filter := statusParam + "=" + statusValue
	return []NamedQuery{
		{Name: "Filter by Status", Query: filter},
		{Name: searchName, Query: "search=Test"},
		{Name: "Pagination", Query: "page=1&limit=5"},
		{Name: "Combined Filters", Query: filter + "&limit=10&page=1"},
	}
}

var entitySpecs = map[string]EntitySpec{
	EntityEscrows: {
		Name:      EntityEscrows,
		Title:     "Escrow",
		EventType: "escrow",
		Path:      "/escrows",
		Create: func(s Stamp) map[string]any {
			return map[string]any{"propertyAddress": s.Suffix + " Test Lane"}
		},
		Update: map[string]any{"purchasePrice": 500000, "earnestMoneyDeposit": 25000},
		Searches: func(Stamp) []NamedQuery {
			return standardSearches("status", "Active", "Search by Property")
		},
		MissingFields: map[string]any{},
		UpdateMissing: map[string]any{"purchasePrice": 100},
		EdgeCases: func(s Stamp) []NamedBody {
			return []NamedBody{
				{Name: "Special Characters", Body: map[string]any{
					"propertyAddress":   "123 O'Brien & Co. Street #456",
					"escrowOfficerName": "José García's & Müller-Smith",
				}},
				{Name: "Large Price", Body: map[string]any{
					"propertyAddress": "Expensive Property Test",
					"purchasePrice":   99999999,
				}},
				{Name: "Empty Fields", Body: map[string]any{
					"propertyAddress":    "Empty Fields Test",
					"escrowOfficerName":  "",
					"escrowOfficerEmail": "",
				}},
			}
		},
		Widgets: []Probe{
			{Name: "Escrow Details", Suffix: "details"},
			{Name: "Escrow Property", Suffix: "property-details"},
			{Name: "Escrow Documents", Suffix: "documents"},
			{Name: "Escrow Notes", Suffix: "notes"},
			{Name: "Escrow Checklists", Suffix: "checklists"},
			{Name: "Escrow People", Suffix: "people"},
			{Name: "Escrow Financials", Suffix: "financials"},
			{Name: "Escrow Timeline", Suffix: "timeline"},
		},
		CompactFields: []string{"id", "propertyAddress", "escrowStatus", "purchasePrice", "closingDate"},
		DetailedFields: []string{
			"scheduledCoeDate", "daysToClose", "clientName", "checklistProgress",
			"escrowCompany", "titleCompany", "lenderName", "nhdCompany",
		},
	},
	EntityListings: {
		Name:      EntityListings,
		Title:     "Listing",
		EventType: "listing",
		Path:      "/listings",
		Create: func(s Stamp) map[string]any {
			return map[string]any{
				"propertyAddress": s.Suffix + " Test Listing Ave",
				"listPrice":       500000,
				"propertyType":    "Single Family",
			}
		},
		Update: map[string]any{"listPrice": 550000, "listingStatus": "Pending"},
		Searches: func(Stamp) []NamedQuery {
			return standardSearches("status", "Active", "Search by Property")
		},
		MissingFields: map[string]any{},
		UpdateMissing: map[string]any{"listPrice": 100},
		EdgeCases: func(s Stamp) []NamedBody {
			return []NamedBody{
				{Name: "Special Characters", Body: map[string]any{
					"propertyAddress": "123 O'Brien & Co. Street #456",
					"listPrice":       750000,
					"propertyType":    "Condo",
					"description":     "José García's property with Müller-Smith",
				}},
				{Name: "Large Price", Body: map[string]any{
					"propertyAddress": "Expensive Listing Test",
					"listPrice":       999999999,
					"propertyType":    "Single Family",
				}},
				{Name: "Empty Fields", Body: map[string]any{
					"propertyAddress": "Empty Fields Listing Test",
					"listPrice":       400000,
					"propertyType":    "Single Family",
					"description":     "",
				}},
			}
		},
		CompactFields:  []string{"id", "propertyAddress", "listPrice", "listingStatus", "propertyType"},
		DetailedFields: []string{"bedrooms", "bathrooms", "squareFeet", "daysOnMarket", "listingDate", "description"},
	},
	EntityClients: {
		Name:      EntityClients,
		Title:     "Client",
		EventType: "client",
		Path:      "/clients",
		Create: func(s Stamp) map[string]any {
			return map[string]any{
				"firstName": "Test",
				"lastName":  "CoreClient_" + s.Suffix,
				"email":     "client_" + s.Suffix + "@example.com",
			}
		},
		Update: map[string]any{"phone": "555-1234", "clientType": "buyer"},
		Searches: func(Stamp) []NamedQuery {
			return standardSearches("status", "active", "Search by Name")
		},
		MissingFields: map[string]any{"firstName": "Test"},
		UpdateMissing: map[string]any{"phone": "555-0000"},
		EdgeCases: func(s Stamp) []NamedBody {
			return []NamedBody{
				{Name: "Special Characters", Body: map[string]any{
					"firstName":  "O'Brien",
					"lastName":   "Müller-García & Co.",
					"email":      "special_" + s.Suffix + "@example.com",
					"phone":      "+1 (555) 123-4567",
					"clientType": "seller",
				}},
				{Name: "Empty Optional Fields", Body: map[string]any{
					"firstName": "EmptyFields",
					"lastName":  "Test",
					"email":     "empty_" + s.Suffix + "@example.com",
					"phone":     "",
					"address":   "",
				}},
			}
		},
		CompactFields:  []string{"id", "firstName", "lastName", "email", "clientType"},
		DetailedFields: []string{"phone", "status", "address", "notes", "createdAt"},
	},
	EntityAppointments: {
		Name:      EntityAppointments,
		Title:     "Appointment",
		EventType: "appointment",
		Path:      "/appointments",
		Create: func(s Stamp) map[string]any {
			return map[string]any{
				"title":           "Test Showing " + s.Suffix,
				"appointmentDate": s.Today,
				"startTime":       "10:00",
				"endTime":         "11:00",
				"appointmentType": "Property Showing",
			}
		},
		Update: map[string]any{"location": "Updated Location - Conference Room B", "status": "confirmed"},
		Searches: func(s Stamp) []NamedQuery {
			return []NamedQuery{
				{Name: "Filter by Status", Query: "status=scheduled"},
				{Name: "Filter by Date Range", Query: "startDate=" + s.Today + "&endDate=" + s.Today},
				{Name: "Pagination", Query: "page=1&limit=5"},
				{Name: "Combined Filters", Query: "status=scheduled&limit=10&page=1"},
			}
		},
		MissingFields: map[string]any{"title": "Missing Date"},
		UpdateMissing: map[string]any{"location": "Test"},
		EdgeCases: func(s Stamp) []NamedBody {
			return []NamedBody{
				{Name: "Special Characters", Body: map[string]any{
					"title":           "O'Brien & Müller Meeting - García's Property",
					"appointmentDate": s.Today,
					"startTime":       "14:00",
					"endTime":         "15:00",
					"location":        "123 O'Connor St #456",
					"appointmentType": "Consultation",
				}},
				{Name: "Empty Optional Fields", Body: map[string]any{
					"title":           "Empty Fields Test",
					"appointmentDate": s.Today,
					"startTime":       "16:00",
					"endTime":         "17:00",
					"location":        "",
					"notes":           "",
				}},
			}
		},
		CompactFields:  []string{"id", "title", "appointmentDate", "startTime", "status"},
		DetailedFields: []string{"endTime", "location", "appointmentType", "notes", "createdAt"},
	},
	EntityLeads: {
		Name:      EntityLeads,
		Title:     "Lead",
		EventType: "lead",
		Path:      "/leads",
		Create: func(s Stamp) map[string]any {
			return map[string]any{
				"firstName": "Test",
				"lastName":  "BuyerLead_" + s.Suffix,
				"email":     "testbuyer_" + s.Suffix + "@test.com",
				"phone":     "555-1001",
				"source":    "Website",
			}
		},
		Update: map[string]any{"leadStatus": "contacted", "notes": "Initial contact made"},
		Searches: func(Stamp) []NamedQuery {
			return standardSearches("leadStatus", "New", "Search by Name")
		},
		MissingFields: map[string]any{"firstName": "Test"},
		UpdateMissing: map[string]any{"notes": "Test"},
		EdgeCases: func(s Stamp) []NamedBody {
			return []NamedBody{
				{Name: "Special Characters", Body: map[string]any{
					"firstName": "O'Brien",
					"lastName":  "Müller-García",
					"email":     "special_lead_" + s.Suffix + "@test.com",
					"phone":     "+1 (555) 987-6543",
					"source":    "Referral",
					"notes":     "Client of José's & García Co.",
				}},
				{Name: "Empty Optional Fields", Body: map[string]any{
					"firstName": "EmptyFields",
					"lastName":  "Lead",
					"email":     "empty_lead_" + s.Suffix + "@test.com",
					"phone":     "",
					"notes":     "",
				}},
			}
		},
		CompactFields:  []string{"id", "firstName", "lastName", "email", "leadStatus"},
		DetailedFields: []string{"phone", "source", "notes", "leadScore", "createdAt"},
	},
}

// DefaultEntityOrder is the order suites run in when no filter is given.
var DefaultEntityOrder = []string{EntityEscrows, EntityListings, EntityClients, EntityAppointments, EntityLeads}

// LookupEntity returns the spec for name.
func LookupEntity(name string) (EntitySpec, error) {
	spec, ok := entitySpecs[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return EntitySpec{}, fmt.Errorf("unknown entity %q (known: %s)", name, strings.Join(EntityNames(), ", "))
	}
	return spec, nil
}

// EntityNames returns the known entity names sorted.
func EntityNames() []string {
	names := make([]string, 0, len(entitySpecs))
	for n := range entitySpecs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
