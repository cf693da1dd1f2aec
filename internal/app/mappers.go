package app

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"rental_kernel/internal/domain"
)

/********** alias registries (single source of truth) **********/

// Aliases are folded: lower case, letters and digits only. "Room Number",
// "room_number" and "roomNumber" all fold to "roomnumber".

var collectionAliases = map[string][]string{
	"rooms":    {"rooms", "room"},
	"tenants":  {"tenants", "tenant"},
	"bookings": {"bookings", "booking", "reservations"},
	"invoices": {"invoices", "invoice", "billing"},
	"tasks":    {"tasks", "task", "todo"},
}

var roomAliases = map[string][]string{
	"id":         {"id", "roomid"},
	"number":     {"number", "roomnumber", "roomno", "room"},
	"type":       {"type", "roomtype"},
	"status":     {"status", "roomstatus"},
	"price":      {"price", "rent", "monthlyrent", "rate"},
	"tenantName": {"tenantname", "tenant", "occupant"},
}

var tenantAliases = map[string][]string{
	"id":             {"id", "tenantid"},
	"name":           {"name", "tenantname", "fullname"},
	"roomNumber":     {"roomnumber", "room", "roomno"},
	"phone":          {"phone", "phonenumber", "mobile", "tel"},
	"entryDate":      {"entrydate", "movein", "moveindate", "startdate"},
	"status":         {"status"},
	"emergencyName":  {"emergencyname", "emergencycontact", "emergencycontactname"},
	"emergencyPhone": {"emergencyphone", "emergencycontactphone"},
	"contractPeriod": {"contractperiod", "contract", "leaseterm"},
	"depositAmount":  {"depositamount", "deposit"},
}

var bookingAliases = map[string][]string{
	"id":          {"id", "bookingid"},
	"roomNumber":  {"roomnumber", "room", "roomno"},
	"tenantName":  {"tenantname", "name", "guest", "applicant"},
	"phone":       {"phone", "phonenumber", "mobile", "tel"},
	"bookingDate": {"bookingdate", "created", "createdat", "timestamp"},
	"moveInDate":  {"moveindate", "movein", "checkin"},
	"status":      {"status"},
}

var invoiceAliases = map[string][]string{
	"id":         {"id", "invoiceid"},
	"roomNumber": {"roomnumber", "room", "roomno"},
	"month":      {"month", "period", "billingmonth"},
	"date":       {"date", "issuedate", "invoicedate"},
	"amount":     {"amount", "total", "amountdue"},
	"status":     {"status", "paymentstatus"},
}

var taskAliases = map[string][]string{
	"id":          {"id", "taskid"},
	"title":       {"title", "task", "name"},
	"description": {"description", "details", "notes"},
	"assignee":    {"assignee", "assignedto", "owner"},
	"priority":    {"priority"},
	"status":      {"status"},
	"dueDate":     {"duedate", "due", "deadline"},
	"category":    {"category", "type"},
}

/********** tiny helpers **********/

func foldKey(k string) string {
	var b strings.Builder
	b.Grow(len(k))
	for _, r := range k {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// foldRow re-keys a sheet row by folded header name.
func foldRow(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		fk := foldKey(k)
		if _, dup := out[fk]; dup && isBlank(v) {
			continue
		}
		out[fk] = v
	}
	return out
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// cellString renders any JSON scalar as the sheet would display it.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// firstNonEmptyAlias: first non-empty cell for a named alias set.
func firstNonEmptyAlias(row map[string]any, aliases map[string][]string, key string) string {
	for _, a := range aliases[key] {
		if s := cellString(row[a]); s != "" {
			return s
		}
	}
	return ""
}

// parseMoney accepts json.Number, float64 and strings like "1,500", "฿1,500.50"
// or "1500 THB".
func parseMoney(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		var b strings.Builder
		for i, r := range strings.TrimSpace(t) {
			switch {
			case unicode.IsDigit(r) || r == '.':
				b.WriteRune(r)
			case r == '-' && i == 0:
				b.WriteRune(r)
			}
		}
		if b.Len() == 0 {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(b.String())
		return d, err == nil
	}
	return decimal.Zero, false
}

func firstMoneyAlias(row map[string]any, aliases map[string][]string, key string) (decimal.Decimal, bool) {
	for _, a := range aliases[key] {
		if v, ok := row[a]; ok && !isBlank(v) {
			if d, ok := parseMoney(v); ok {
				return d, true
			}
		}
	}
	return decimal.Zero, false
}

// synthID gives id-less rows a stable identity derived from their content.
func synthID(prefix string, row map[string]any) string {
	raw, err := json.Marshal(row)
	if err != nil {
		log.Error().Err(err).Str("context", "synthID").Msg("failed to marshal row")
	}
	sum := sha1.Sum(raw)
	return prefix + "-" + strings.ToUpper(hex.EncodeToString(sum[:])[:10])
}

// rowsFor finds the collection under any of its aliases; rows that aren't
// objects are skipped.
func rowsFor(raw map[string]any, name string) []map[string]any {
	folded := make(map[string]any, len(raw))
	for k, v := range raw {
		folded[foldKey(k)] = v
	}
	for _, a := range collectionAliases[name] {
		list, ok := folded[a].([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(list))
		skipped := 0
		for _, it := range list {
			m, ok := it.(map[string]any)
			if !ok {
				skipped++
				continue
			}
			out = append(out, foldRow(m))
		}
		if skipped > 0 {
			log.Warn().Str("collection", name).Int("skipped", skipped).Msg("non-object rows ignored")
		}
		return out
	}
	return nil
}

/********** dataset mapper **********/

// MapDataset turns the backend's raw object into typed collections. Missing
// collections come back empty, never nil.
func MapDataset(raw map[string]any) domain.Dataset {
	var ds domain.Dataset
	for _, r := range rowsFor(raw, "rooms") {
		ds.Rooms = append(ds.Rooms, mapRoom(r))
	}
	for _, r := range rowsFor(raw, "tenants") {
		ds.Tenants = append(ds.Tenants, mapTenant(r))
	}
	for _, r := range rowsFor(raw, "bookings") {
		ds.Bookings = append(ds.Bookings, mapBooking(r))
	}
	for _, r := range rowsFor(raw, "invoices") {
		ds.Invoices = append(ds.Invoices, mapInvoice(r))
	}
	for _, r := range rowsFor(raw, "tasks") {
		ds.Tasks = append(ds.Tasks, mapTask(r))
	}
	return ds.Normalize()
}

func mapRoom(r map[string]any) domain.Room {
	room := domain.Room{
		ID:         firstNonEmptyAlias(r, roomAliases, "id"),
		Number:     firstNonEmptyAlias(r, roomAliases, "number"),
		Type:       domain.NormalizeRoomType(firstNonEmptyAlias(r, roomAliases, "type")),
		Status:     domain.NormalizeRoomStatus(firstNonEmptyAlias(r, roomAliases, "status")),
		TenantName: firstNonEmptyAlias(r, roomAliases, "tenantName"),
	}
	room.Price, _ = firstMoneyAlias(r, roomAliases, "price")
	if room.ID == "" {
		room.ID = synthID("R", r)
	}
	return room
}

func mapTenant(r map[string]any) domain.Tenant {
	t := domain.Tenant{
		ID:             firstNonEmptyAlias(r, tenantAliases, "id"),
		Name:           firstNonEmptyAlias(r, tenantAliases, "name"),
		RoomNumber:     firstNonEmptyAlias(r, tenantAliases, "roomNumber"),
		Phone:          firstNonEmptyAlias(r, tenantAliases, "phone"),
		EntryDate:      firstNonEmptyAlias(r, tenantAliases, "entryDate"),
		Status:         domain.NormalizeTenantStatus(firstNonEmptyAlias(r, tenantAliases, "status")),
		EmergencyName:  firstNonEmptyAlias(r, tenantAliases, "emergencyName"),
		EmergencyPhone: firstNonEmptyAlias(r, tenantAliases, "emergencyPhone"),
		ContractPeriod: firstNonEmptyAlias(r, tenantAliases, "contractPeriod"),
	}
	if d, ok := firstMoneyAlias(r, tenantAliases, "depositAmount"); ok {
		t.DepositAmount = &d
	}
	if t.ID == "" {
		t.ID = synthID("T", r)
	}
	return t
}

func mapBooking(r map[string]any) domain.Booking {
	b := domain.Booking{
		ID:          firstNonEmptyAlias(r, bookingAliases, "id"),
		RoomNumber:  firstNonEmptyAlias(r, bookingAliases, "roomNumber"),
		TenantName:  firstNonEmptyAlias(r, bookingAliases, "tenantName"),
		Phone:       firstNonEmptyAlias(r, bookingAliases, "phone"),
		BookingDate: firstNonEmptyAlias(r, bookingAliases, "bookingDate"),
		MoveInDate:  firstNonEmptyAlias(r, bookingAliases, "moveInDate"),
		Status:      domain.NormalizeBookingStatus(firstNonEmptyAlias(r, bookingAliases, "status")),
	}
	if b.ID == "" {
		b.ID = synthID("BK", r)
	}
	return b
}

func mapInvoice(r map[string]any) domain.Invoice {
	inv := domain.Invoice{
		ID:         firstNonEmptyAlias(r, invoiceAliases, "id"),
		RoomNumber: firstNonEmptyAlias(r, invoiceAliases, "roomNumber"),
		Month:      firstNonEmptyAlias(r, invoiceAliases, "month"),
		Date:       firstNonEmptyAlias(r, invoiceAliases, "date"),
		Status:     domain.NormalizeInvoiceStatus(firstNonEmptyAlias(r, invoiceAliases, "status")),
	}
	inv.Amount, _ = firstMoneyAlias(r, invoiceAliases, "amount")
	if inv.ID == "" {
		inv.ID = synthID("INV", r)
	}
	return inv
}

func mapTask(r map[string]any) domain.Task {
	t := domain.Task{
		ID:          firstNonEmptyAlias(r, taskAliases, "id"),
		Title:       firstNonEmptyAlias(r, taskAliases, "title"),
		Description: firstNonEmptyAlias(r, taskAliases, "description"),
		Assignee:    firstNonEmptyAlias(r, taskAliases, "assignee"),
		Priority:    domain.NormalizePriority(firstNonEmptyAlias(r, taskAliases, "priority")),
		Status:      domain.NormalizeTaskStatus(firstNonEmptyAlias(r, taskAliases, "status")),
		DueDate:     firstNonEmptyAlias(r, taskAliases, "dueDate"),
		Category:    domain.NormalizeCategory(firstNonEmptyAlias(r, taskAliases, "category")),
	}
	if t.ID == "" {
		t.ID = synthID("TSK", r)
	}
	return t
}
