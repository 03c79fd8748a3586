package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultDigidatesURL = "https://digidates.de/api/v1"
	digidatesTimeout    = 10 * time.Second
)

// DigidatesClient talks to the digidates.de date utility API. The API is
// loose about response shapes (some endpoints return bare scalars, some
// wrap results in objects), so callers decode defensively via unwrapField.
type DigidatesClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

func NewDigidatesClient(logger *zap.Logger) *DigidatesClient {
	return &DigidatesClient{
		httpClient: &http.Client{},
		baseURL:    defaultDigidatesURL,
		logger:     logger,
	}
}

// NewDigidatesClientWithURL exists for tests that point the client at a
// local server.
func NewDigidatesClientWithURL(baseURL string, logger *zap.Logger) *DigidatesClient {
	c := NewDigidatesClient(logger)
	c.baseURL = baseURL
	return c
}

func (c *DigidatesClient) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, digidatesTimeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %d from digidates", resp.StatusCode)
	}

	if json.Valid(body) {
		return body, nil
	}
	// Some endpoints answer with plain text; wrap it so callers always see
	// JSON.
	wrapped, _ := json.Marshal(map[string]string{"result": strings.TrimSpace(string(body))})
	return wrapped, nil
}

// unwrapField digs a value out of a response object, trying the endpoint's
// documented key first and the generic "result" wrapper second. A scalar
// response comes back unchanged.
func unwrapField(raw json.RawMessage, keys ...string) json.RawMessage {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return raw
	}
	for _, key := range append(keys, "result") {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return raw
}

func rawAsBool(raw json.RawMessage) (bool, bool) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	}
	return false, false
}

func rawAsText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// UnixTimeTool returns the current Unix time or converts a timestamp.
type UnixTimeTool struct {
	client *DigidatesClient
	logger *zap.Logger
}

func NewUnixTimeTool(client *DigidatesClient, logger *zap.Logger) *UnixTimeTool {
	return &UnixTimeTool{client: client, logger: logger}
}

func (t *UnixTimeTool) Name() string { return "get_unix_time" }

func (t *UnixTimeTool) Description() string {
	return "Get the current Unix timestamp, or convert a timestamp like '2022-01-01 00:00:00' to Unix time. An empty input means 'now'."
}

func (t *UnixTimeTool) Call(ctx context.Context, input string) (string, error) {
	timestamp := ExtractField(input, "timestamp")
	// Models occasionally feed a previous observation back in; treat that
	// the same as an empty input.
	if strings.Contains(timestamp, "Observation:") || timestamp == "{}" {
		timestamp = ""
	}

	params := url.Values{}
	if timestamp != "" {
		params.Set("timestamp", timestamp)
	}

	raw, err := t.client.get(ctx, "/unixtime", params)
	if err != nil {
		t.logger.Error("unix time lookup failed", zap.Error(err))
		return "Error: Unable to retrieve Unix time from the API", nil
	}

	value := rawAsText(unwrapField(raw, "time"))

	// Attach the calendar date when the value parses, to spare the model a
	// second conversion step.
	if unix, err := strconv.ParseInt(value, 10, 64); err == nil {
		date := time.Unix(unix, 0).UTC().Format("2006-01-02")
		if timestamp != "" {
			return fmt.Sprintf("Unix timestamp for '%s': %s (Date: %s)", timestamp, value, date), nil
		}
		return fmt.Sprintf("Current Unix timestamp: %s (Current date: %s)", value, date), nil
	}
	if timestamp != "" {
		return fmt.Sprintf("Unix timestamp for '%s': %s", timestamp, value), nil
	}
	return fmt.Sprintf("Current Unix timestamp: %s", value), nil
}

// WeekNumberTool returns the ISO week number for a date.
type WeekNumberTool struct {
	client *DigidatesClient
}

func NewWeekNumberTool(client *DigidatesClient) *WeekNumberTool {
	return &WeekNumberTool{client: client}
}

func (t *WeekNumberTool) Name() string { return "get_week_number" }

func (t *WeekNumberTool) Description() string {
	return "Get the week number for a date in YYYY-MM-DD format, for example '2022-01-01'."
}

func (t *WeekNumberTool) Call(ctx context.Context, input string) (string, error) {
	date := ExtractField(input, "date")

	params := url.Values{}
	params.Set("date", date)
	raw, err := t.client.get(ctx, "/week", params)
	if err != nil {
		return fmt.Sprintf("Error: Unable to retrieve week number for date %s", date), nil
	}

	return fmt.Sprintf("Week number for %s: %s", date, rawAsText(unwrapField(raw, "week"))), nil
}

// LeapYearTool checks whether a year is a leap year.
type LeapYearTool struct {
	client *DigidatesClient
}

func NewLeapYearTool(client *DigidatesClient) *LeapYearTool {
	return &LeapYearTool{client: client}
}

func (t *LeapYearTool) Name() string { return "check_leap_year" }

func (t *LeapYearTool) Description() string {
	return "Check whether a year is a leap year. Input is a year like '2020'."
}

func (t *LeapYearTool) Call(ctx context.Context, input string) (string, error) {
	year := ExtractField(input, "year")

	params := url.Values{}
	params.Set("year", year)
	raw, err := t.client.get(ctx, "/leapyear", params)
	if err != nil {
		return fmt.Sprintf("Error: Unable to check leap year for %s", year), nil
	}

	if isLeap, ok := rawAsBool(unwrapField(raw, "leapyear")); ok {
		if isLeap {
			return fmt.Sprintf("Year %s is a leap year", year), nil
		}
		return fmt.Sprintf("Year %s is not a leap year", year), nil
	}
	return fmt.Sprintf("Leap year check for %s: %s", year, rawAsText(raw)), nil
}

// ValidateDateTool checks whether a date exists on the calendar.
type ValidateDateTool struct {
	client *DigidatesClient
}

func NewValidateDateTool(client *DigidatesClient) *ValidateDateTool {
	return &ValidateDateTool{client: client}
}

func (t *ValidateDateTool) Name() string { return "validate_date" }

func (t *ValidateDateTool) Description() string {
	return "Check whether a date in YYYY-MM-DD format is a valid calendar date."
}

func (t *ValidateDateTool) Call(ctx context.Context, input string) (string, error) {
	date := ExtractField(input, "date")

	params := url.Values{}
	params.Set("date", date)
	raw, err := t.client.get(ctx, "/checkdate", params)
	if err != nil {
		return fmt.Sprintf("Error: Unable to validate date %s", date), nil
	}

	if valid, ok := rawAsBool(unwrapField(raw, "checkdate")); ok {
		if valid {
			return fmt.Sprintf("Date %s is valid", date), nil
		}
		return fmt.Sprintf("Date %s is invalid", date), nil
	}
	return fmt.Sprintf("Date check for %s: %s", date, rawAsText(raw)), nil
}

var weekdayNames = [...]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// WeekdayTool returns the day of the week for a date.
type WeekdayTool struct {
	client *DigidatesClient
}

func NewWeekdayTool(client *DigidatesClient) *WeekdayTool {
	return &WeekdayTool{client: client}
}

func (t *WeekdayTool) Name() string { return "get_weekday" }

func (t *WeekdayTool) Description() string {
	return "Get the day of the week for a date in YYYY-MM-DD format."
}

func (t *WeekdayTool) Call(ctx context.Context, input string) (string, error) {
	date := ExtractField(input, "date")

	params := url.Values{}
	params.Set("date", date)
	raw, err := t.client.get(ctx, "/weekday", params)
	if err != nil {
		return fmt.Sprintf("Error: Unable to get weekday for date %s", date), nil
	}

	value := rawAsText(unwrapField(raw, "weekday"))
	if n, err := strconv.Atoi(value); err == nil && n >= 0 && n <= 6 {
		return fmt.Sprintf("Date %s falls on a %s (weekday number: %d)", date, weekdayNames[n], n), nil
	}
	return fmt.Sprintf("Weekday number for %s: %s", date, value), nil
}

// ProgressTool reports how far along the span between two dates is.
type ProgressTool struct {
	client *DigidatesClient
}

func NewProgressTool(client *DigidatesClient) *ProgressTool {
	return &ProgressTool{client: client}
}

func (t *ProgressTool) Name() string { return "calculate_progress" }

func (t *ProgressTool) Description() string {
	return "Calculate how far along the period between two dates is. Input is a JSON object like {\"start_date\": \"2022-01-01\", \"end_date\": \"2022-12-31\"}."
}

func (t *ProgressTool) Call(ctx context.Context, input string) (string, error) {
	fields := ExtractFields(input, "start_date", "end_date")
	start, end := fields["start_date"], fields["end_date"]
	if start == "" || end == "" {
		return "Error: Provide both start_date and end_date in YYYY-MM-DD format.", nil
	}

	params := url.Values{}
	params.Set("start", start)
	params.Set("end", end)
	raw, err := t.client.get(ctx, "/progress", params)
	if err != nil {
		return fmt.Sprintf("Error: Unable to calculate progress from %s to %s", start, end), nil
	}

	var progress struct {
		Float   *float64 `json:"float"`
		Percent *float64 `json:"percent"`
	}
	if err := json.Unmarshal(unwrapField(raw), &progress); err == nil && progress.Percent != nil && progress.Float != nil {
		return fmt.Sprintf("Progress from %s to %s: %g%% (%g as decimal)", start, end, *progress.Percent, *progress.Float), nil
	}
	return fmt.Sprintf("Progress from %s to %s: %s", start, end, rawAsText(raw)), nil
}

// CountdownTool reports the time remaining until a date.
type CountdownTool struct {
	client *DigidatesClient
}

func NewCountdownTool(client *DigidatesClient) *CountdownTool {
	return &CountdownTool{client: client}
}

func (t *CountdownTool) Name() string { return "countdown_to_date" }

func (t *CountdownTool) Description() string {
	return "Calculate the countdown to a future date in YYYY-MM-DD format, for example '2024-12-25'."
}

func (t *CountdownTool) Call(ctx context.Context, input string) (string, error) {
	target := ExtractField(input, "target_date")

	raw, err := t.client.get(ctx, "/countdown/"+url.PathEscape(target), nil)
	if err != nil {
		return fmt.Sprintf("Error: Unable to calculate countdown to %s", target), nil
	}

	var countdown struct {
		DaysOnly *int `json:"daysonly"`
		Extended struct {
			Years  int `json:"years"`
			Months int `json:"months"`
			Days   int `json:"days"`
		} `json:"countdownextended"`
	}
	if err := json.Unmarshal(unwrapField(raw), &countdown); err == nil && countdown.DaysOnly != nil {
		parts := []string{
			fmt.Sprintf("Countdown to %s:", target),
			fmt.Sprintf("• Total days: %d", *countdown.DaysOnly),
		}
		e := countdown.Extended
		if e.Years != 0 || e.Months != 0 || e.Days != 0 {
			parts = append(parts, fmt.Sprintf("• Extended: %d years, %d months, %d days", e.Years, e.Months, e.Days))
		}
		return strings.Join(parts, "\n"), nil
	}
	return fmt.Sprintf("Countdown to %s: %s", target, rawAsText(raw)), nil
}

// AgeTool computes an age from a birth date.
type AgeTool struct {
	client *DigidatesClient
}

func NewAgeTool(client *DigidatesClient) *AgeTool {
	return &AgeTool{client: client}
}

func (t *AgeTool) Name() string { return "calculate_age" }

func (t *AgeTool) Description() string {
	return "Calculate the age for a birth date in YYYY-MM-DD format, for example '1990-01-01'."
}

func (t *AgeTool) Call(ctx context.Context, input string) (string, error) {
	birthDate := ExtractField(input, "birth_date")

	raw, err := t.client.get(ctx, "/age/"+url.PathEscape(birthDate), nil)
	if err != nil {
		return fmt.Sprintf("Error: Unable to calculate age for birth date %s", birthDate), nil
	}

	var age struct {
		Age      *int `json:"age"`
		Extended struct {
			Years  int `json:"years"`
			Months int `json:"months"`
			Days   int `json:"days"`
		} `json:"ageextended"`
	}
	if err := json.Unmarshal(unwrapField(raw), &age); err == nil && age.Age != nil {
		parts := []string{
			fmt.Sprintf("Age for birth date %s:", birthDate),
			fmt.Sprintf("• Age: %d years", *age.Age),
		}
		e := age.Extended
		if e.Years != 0 || e.Months != 0 || e.Days != 0 {
			parts = append(parts, fmt.Sprintf("• Detailed: %d years, %d months, %d days", e.Years, e.Months, e.Days))
		}
		return strings.Join(parts, "\n"), nil
	}
	return fmt.Sprintf("Age for birth date %s: %s", birthDate, rawAsText(raw)), nil
}

// CO2Tool reports the atmospheric CO2 concentration for a year.
type CO2Tool struct {
	client *DigidatesClient
}

func NewCO2Tool(client *DigidatesClient) *CO2Tool {
	return &CO2Tool{client: client}
}

func (t *CO2Tool) Name() string { return "get_co2_level" }

func (t *CO2Tool) Description() string {
	return "Get the atmospheric CO2 level for a year between 1959 and the present."
}

func (t *CO2Tool) Call(ctx context.Context, input string) (string, error) {
	year := ExtractField(input, "year")

	raw, err := t.client.get(ctx, "/co2/"+url.PathEscape(year), nil)
	if err != nil {
		return fmt.Sprintf("Error: Unable to get CO2 level for year %s", year), nil
	}

	return fmt.Sprintf("CO2 level for year %s: %s PPM", year, rawAsText(unwrapField(raw, "co2"))), nil
}

// GermanHolidaysTool lists German public holidays.
type GermanHolidaysTool struct {
	client *DigidatesClient
}

func NewGermanHolidaysTool(client *DigidatesClient) *GermanHolidaysTool {
	return &GermanHolidaysTool{client: client}
}

func (t *GermanHolidaysTool) Name() string { return "get_german_holidays" }

func (t *GermanHolidaysTool) Description() string {
	return "Get German public holidays. Input is a JSON object like {\"year\": \"2022\", \"region\": \"de-bb\"}; both fields are optional."
}

func (t *GermanHolidaysTool) Call(ctx context.Context, input string) (string, error) {
	fields := ExtractFields(input, "year", "region")
	year, region := fields["year"], fields["region"]
	if year == "" && !strings.HasPrefix(strings.TrimSpace(input), "{") {
		// A bare "2022" counts as the year.
		year = strings.TrimSpace(input)
	}

	params := url.Values{}
	if year != "" {
		params.Set("year", year)
	}
	if region != "" {
		params.Set("region", region)
	}

	raw, err := t.client.get(ctx, "/germanpublicholidays", params)
	if err != nil {
		return "Error: Unable to get German holidays", nil
	}

	yearLabel := year
	if yearLabel == "" {
		yearLabel = "current year"
	}
	regionLabel := ""
	if region != "" {
		regionLabel = fmt.Sprintf(" in region %s", region)
	}

	var dates []string
	if err := json.Unmarshal(unwrapField(raw), &dates); err == nil {
		parts := []string{fmt.Sprintf("German public holidays for %s%s:", yearLabel, regionLabel)}
		for i, d := range dates {
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, d))
		}
		return strings.Join(parts, "\n"), nil
	}

	var named map[string]string
	if err := json.Unmarshal(unwrapField(raw), &named); err == nil {
		parts := []string{fmt.Sprintf("German public holidays for %s%s:", yearLabel, regionLabel)}
		i := 1
		for date, name := range named {
			parts = append(parts, fmt.Sprintf("%d. %s (%s)", i, name, date))
			i++
		}
		return strings.Join(parts, "\n"), nil
	}

	return fmt.Sprintf("German public holidays: %s", rawAsText(raw)), nil
}

// DatetimeHelpTool describes the datetime tool set.
type DatetimeHelpTool struct{}

func NewDatetimeHelpTool() *DatetimeHelpTool { return &DatetimeHelpTool{} }

func (t *DatetimeHelpTool) Name() string { return "datetime_help" }

func (t *DatetimeHelpTool) Description() string {
	return "Get help about the available date and time tools. Takes no meaningful input."
}

func (t *DatetimeHelpTool) Call(_ context.Context, _ string) (string, error) {
	return `DateTime Tools Help

Available datetime operations:
• get_unix_time - convert a timestamp to Unix time or get the current Unix time
• get_week_number - week number for a date (format: YYYY-MM-DD)
• check_leap_year - check if a year is a leap year
• validate_date - check if a date is valid (format: YYYY-MM-DD)
• get_weekday - day of the week for a date (format: YYYY-MM-DD)
• calculate_progress - progress between two dates
• countdown_to_date - countdown to a specific date
• calculate_age - age from a birth date
• get_co2_level - atmospheric CO2 level for a year (1959-present)
• get_german_holidays - German public holidays
• datetime_help - this help information

Date format: use YYYY-MM-DD for dates (e.g., "2022-01-01").

Examples:
• "What week is January 1st, 2022?" -> get_week_number with "2022-01-01"
• "Is 2020 a leap year?" -> check_leap_year with "2020"
• "How many days until Christmas?" -> countdown_to_date with "2024-12-25"
• "What's my age if I was born in 1990?" -> calculate_age with "1990-01-01"`, nil
}
