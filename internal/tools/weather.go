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
	defaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
	defaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"

	geocodeTimeout  = 10 * time.Second
	forecastTimeout = 15 * time.Second
)

// WeatherClient talks to the Open-Meteo forecast and geocoding APIs. Neither
// endpoint needs an API key.
type WeatherClient struct {
	httpClient   *http.Client
	forecastURL  string
	geocodingURL string
	logger       *zap.Logger
}

func NewWeatherClient(logger *zap.Logger) *WeatherClient {
	return &WeatherClient{
		httpClient:   &http.Client{},
		forecastURL:  defaultForecastURL,
		geocodingURL: defaultGeocodingURL,
		logger:       logger,
	}
}

// NewWeatherClientWithURLs exists for tests that point the client at a local
// server.
func NewWeatherClientWithURLs(forecastURL, geocodingURL string, logger *zap.Logger) *WeatherClient {
	c := NewWeatherClient(logger)
	c.forecastURL = forecastURL
	c.geocodingURL = geocodingURL
	return c
}

type locationInfo struct {
	Latitude  float64
	Longitude float64
	Name      string
	Country   string
}

func (l locationInfo) displayName() string {
	if l.Country != "" {
		return l.Name + ", " + l.Country
	}
	return l.Name
}

type geocodingResponse struct {
	Results []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name"`
		Country   string  `json:"country"`
	} `json:"results"`
}

func (c *WeatherClient) geocode(ctx context.Context, location string) (*locationInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("name", location)
	params.Set("count", "1")
	params.Set("language", "en")
	params.Set("format", "json")

	body, err := c.get(ctx, c.geocodingURL, params)
	if err != nil {
		return nil, err
	}

	var decoded geocodingResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decoding geocoding response: %w", err)
	}
	if len(decoded.Results) == 0 {
		return nil, nil
	}

	r := decoded.Results[0]
	return &locationInfo{
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Name:      r.Name,
		Country:   r.Country,
	}, nil
}

func (c *WeatherClient) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %d from weather service", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// resolveLocation turns a tool input into coordinates. A comma means the
// input is treated as "latitude,longitude"; everything else is geocoded.
// The second return value is a ready-to-use observation text for inputs
// that cannot be resolved.
func (c *WeatherClient) resolveLocation(ctx context.Context, location string) (*locationInfo, string, error) {
	if location == "" {
		return nil, "Error: Please provide a valid location name or coordinates.", nil
	}

	if strings.Contains(location, ",") {
		latStr, lonStr, _ := strings.Cut(location, ",")
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if errLat != nil || errLon != nil {
			return nil, "Error: Invalid coordinate format. Use 'latitude,longitude' (e.g., '52.52,13.41')", nil
		}
		return &locationInfo{
			Latitude:  lat,
			Longitude: lon,
			Name:      fmt.Sprintf("Coordinates (%g, %g)", lat, lon),
		}, "", nil
	}

	info, err := c.geocode(ctx, location)
	if err != nil {
		return nil, "", err
	}
	if info == nil {
		return nil, fmt.Sprintf("Error: Could not find coordinates for location '%s'. Please check the spelling or try a different location.", location), nil
	}
	return info, "", nil
}

type forecastResponse struct {
	Daily struct {
		Time             []string      `json:"time"`
		TemperatureMax   []json.Number `json:"temperature_2m_max"`
		TemperatureMin   []json.Number `json:"temperature_2m_min"`
		WeatherCode      []int         `json:"weather_code"`
		PrecipitationSum []json.Number `json:"precipitation_sum"`
		WindSpeedMax     []json.Number `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

// weatherDescription maps a WMO weather code to text.
func weatherDescription(code int) string {
	descriptions := map[int]string{
		0:  "Clear sky",
		1:  "Mainly clear",
		2:  "Partly cloudy",
		3:  "Overcast",
		45: "Fog",
		48: "Depositing rime fog",
		51: "Light drizzle",
		53: "Moderate drizzle",
		55: "Dense drizzle",
		56: "Light freezing drizzle",
		57: "Dense freezing drizzle",
		61: "Slight rain",
		63: "Moderate rain",
		65: "Heavy rain",
		66: "Light freezing rain",
		67: "Heavy freezing rain",
		71: "Slight snow fall",
		73: "Moderate snow fall",
		75: "Heavy snow fall",
		77: "Snow grains",
		80: "Slight rain showers",
		81: "Moderate rain showers",
		82: "Violent rain showers",
		85: "Slight snow showers",
		86: "Heavy snow showers",
		95: "Thunderstorm",
		96: "Thunderstorm with slight hail",
		99: "Thunderstorm with heavy hail",
	}
	if desc, ok := descriptions[code]; ok {
		return desc
	}
	return fmt.Sprintf("Unknown weather condition (code: %d)", code)
}

// CurrentWeatherTool reports current conditions for a location.
type CurrentWeatherTool struct {
	client *WeatherClient
	logger *zap.Logger
}

func NewCurrentWeatherTool(client *WeatherClient, logger *zap.Logger) *CurrentWeatherTool {
	return &CurrentWeatherTool{client: client, logger: logger}
}

func (t *CurrentWeatherTool) Name() string { return "get_current_weather" }

func (t *CurrentWeatherTool) Description() string {
	return "Get current weather conditions for a location: temperature, humidity, wind, precipitation and conditions. Input is a city name like 'London' or coordinates like '52.52,13.41'; a JSON object like {\"location\": \"Tokyo\", \"include_forecast\": true} adds a short daily forecast."
}

func (t *CurrentWeatherTool) Call(ctx context.Context, input string) (string, error) {
	location := ExtractField(input, "location")
	includeForecast := ExtractFields(input, "include_forecast")["include_forecast"] == "true"
	t.logger.Info("fetching current weather", zap.String("location", location), zap.Bool("include_forecast", includeForecast))

	info, message, err := t.client.resolveLocation(ctx, location)
	if err != nil {
		return fmt.Sprintf("Error fetching weather data: %v", err), nil
	}
	if message != "" {
		return message, nil
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(info.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(info.Longitude, 'f', -1, 64))
	params.Set("current", "temperature_2m,relative_humidity_2m,precipitation,weather_code,wind_speed_10m,wind_direction_10m")
	params.Set("timezone", "auto")
	if includeForecast {
		params.Set("daily", "temperature_2m_max,temperature_2m_min,weather_code")
		params.Set("forecast_days", "5")
	}

	reqCtx, cancel := context.WithTimeout(ctx, forecastTimeout)
	defer cancel()
	body, err := t.client.get(reqCtx, t.client.forecastURL, params)
	if err != nil {
		return fmt.Sprintf("Error fetching weather data: %v", err), nil
	}

	// The current block mixes numbers and a timestamp string, so the
	// timestamp is pulled out of a raw decode first.
	var raw struct {
		Current      map[string]json.RawMessage `json:"current"`
		CurrentUnits map[string]string          `json:"current_units"`
		Daily        struct {
			Time           []string      `json:"time"`
			TemperatureMax []json.Number `json:"temperature_2m_max"`
			TemperatureMin []json.Number `json:"temperature_2m_min"`
			WeatherCode    []int         `json:"weather_code"`
		} `json:"daily"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Sprintf("Error: Could not parse the weather service response. %v", err), nil
	}

	parts := []string{fmt.Sprintf("Weather information for %s:", info.displayName())}

	currentTime := rawString(raw.Current["time"])
	parts = append(parts, fmt.Sprintf("\nCurrent weather (as of %s):", currentTime))

	if v, ok := rawNumber(raw.Current["temperature_2m"]); ok {
		parts = append(parts, fmt.Sprintf("• Temperature: %s°C", v))
	}
	if v, ok := rawNumber(raw.Current["relative_humidity_2m"]); ok {
		parts = append(parts, fmt.Sprintf("• Humidity: %s%%", v))
	}
	if v, ok := rawNumber(raw.Current["wind_speed_10m"]); ok {
		parts = append(parts, fmt.Sprintf("• Wind Speed: %s km/h", v))
	}
	if v, ok := rawNumber(raw.Current["wind_direction_10m"]); ok {
		parts = append(parts, fmt.Sprintf("• Wind Direction: %s°", v))
	}
	if v, ok := rawNumber(raw.Current["precipitation"]); ok {
		parts = append(parts, fmt.Sprintf("• Precipitation: %s mm", v))
	}
	if v, ok := rawNumber(raw.Current["weather_code"]); ok {
		code, _ := strconv.Atoi(v)
		parts = append(parts, fmt.Sprintf("• Conditions: %s", weatherDescription(code)))
	}

	if includeForecast && len(raw.Daily.Time) > 0 {
		parts = append(parts, "\nDaily forecast:")
		for i, date := range raw.Daily.Time {
			if i >= 5 || i >= len(raw.Daily.TemperatureMin) || i >= len(raw.Daily.TemperatureMax) {
				break
			}
			line := fmt.Sprintf("• %s: %s°C to %s°C", date, raw.Daily.TemperatureMin[i], raw.Daily.TemperatureMax[i])
			if i < len(raw.Daily.WeatherCode) {
				line += ", " + weatherDescription(raw.Daily.WeatherCode[i])
			}
			parts = append(parts, line)
		}
	}

	if len(raw.CurrentUnits) > 0 {
		tempUnit := raw.CurrentUnits["temperature_2m"]
		if tempUnit == "" {
			tempUnit = "C"
		}
		windUnit := raw.CurrentUnits["wind_speed_10m"]
		if windUnit == "" {
			windUnit = "km/h"
		}
		parts = append(parts, fmt.Sprintf("\nUnits: Temperature in %s, Wind in %s", tempUnit, windUnit))
	}

	return strings.Join(parts, "\n"), nil
}

func rawString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

func rawNumber(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	return n.String(), true
}

// ForecastTool reports a multi-day forecast for a location.
type ForecastTool struct {
	client *WeatherClient
	logger *zap.Logger
}

func NewForecastTool(client *WeatherClient, logger *zap.Logger) *ForecastTool {
	return &ForecastTool{client: client, logger: logger}
}

func (t *ForecastTool) Name() string { return "get_weather_forecast" }

func (t *ForecastTool) Description() string {
	return "Get a multi-day weather forecast for a location with daily highs and lows, conditions, precipitation and wind. Input is a city name or coordinates; a JSON object like {\"location\": \"Paris\", \"days\": 5} selects the number of days (1-16, default 7)."
}

func (t *ForecastTool) Call(ctx context.Context, input string) (string, error) {
	location := ExtractField(input, "location")
	days := 7
	if fields := ExtractFields(input, "days"); fields["days"] != "" {
		parsed, err := strconv.Atoi(fields["days"])
		if err != nil || parsed < 1 || parsed > 16 {
			return "Error: Number of days must be between 1 and 16.", nil
		}
		days = parsed
	}

	t.logger.Info("fetching weather forecast", zap.String("location", location), zap.Int("days", days))

	info, message, err := t.client.resolveLocation(ctx, location)
	if err != nil {
		return fmt.Sprintf("Error fetching weather forecast: %v", err), nil
	}
	if message != "" {
		return message, nil
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(info.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(info.Longitude, 'f', -1, 64))
	params.Set("daily", "temperature_2m_max,temperature_2m_min,weather_code,precipitation_sum,wind_speed_10m_max,wind_direction_10m_dominant")
	params.Set("timezone", "auto")
	params.Set("forecast_days", strconv.Itoa(days))

	reqCtx, cancel := context.WithTimeout(ctx, forecastTimeout)
	defer cancel()
	body, err := t.client.get(reqCtx, t.client.forecastURL, params)
	if err != nil {
		return fmt.Sprintf("Error fetching weather forecast: %v", err), nil
	}

	var decoded forecastResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Sprintf("Error: Could not parse the weather service response. %v", err), nil
	}

	parts := []string{fmt.Sprintf("Weather forecast for %s (%d days):", info.displayName(), days)}
	daily := decoded.Daily
	for i, date := range daily.Time {
		if i >= len(daily.TemperatureMax) || i >= len(daily.TemperatureMin) {
			break
		}
		formatted := date
		if parsed, err := time.Parse("2006-01-02", date); err == nil {
			formatted = parsed.Format("Monday, January 02")
		}
		parts = append(parts, fmt.Sprintf("\n%s:", formatted))
		parts = append(parts, fmt.Sprintf("  • Temperature: %s°C to %s°C", daily.TemperatureMin[i], daily.TemperatureMax[i]))
		if i < len(daily.WeatherCode) {
			parts = append(parts, fmt.Sprintf("  • Conditions: %s", weatherDescription(daily.WeatherCode[i])))
		}
		if i < len(daily.PrecipitationSum) {
			parts = append(parts, fmt.Sprintf("  • Precipitation: %s mm", daily.PrecipitationSum[i]))
		}
		if i < len(daily.WindSpeedMax) {
			parts = append(parts, fmt.Sprintf("  • Max Wind Speed: %s km/h", daily.WindSpeedMax[i]))
		}
	}

	return strings.Join(parts, "\n"), nil
}

// WeatherHelpTool describes the weather tools so the operator can answer
// capability questions without calling the live APIs.
type WeatherHelpTool struct{}

func NewWeatherHelpTool() *WeatherHelpTool { return &WeatherHelpTool{} }

func (t *WeatherHelpTool) Name() string { return "weather_help" }

func (t *WeatherHelpTool) Description() string {
	return "Get help about the available weather tools, supported location formats and data types. Takes no meaningful input."
}

func (t *WeatherHelpTool) Call(_ context.Context, _ string) (string, error) {
	return `Weather Tools Help

AVAILABLE WEATHER FUNCTIONS:
• get_current_weather - current conditions for a location
• get_weather_forecast - multi-day forecast (1-16 days)
• weather_help - this help information

LOCATION FORMATS SUPPORTED:
• City names: "London", "New York", "Tokyo"
• Coordinates: "52.52,13.41" (latitude,longitude)

CURRENT WEATHER DATA INCLUDES:
• Temperature (°C)
• Humidity (%)
• Wind speed and direction
• Precipitation (mm)
• Weather conditions

FORECAST DATA INCLUDES:
• Daily temperature highs and lows
• Weather conditions for each day
• Precipitation forecasts
• Maximum wind speeds
• Up to 16 days forecast

DATA SOURCE:
• Powered by the Open-Meteo API (no API key required)
• Global coverage, updated hourly

Ask me for weather information for any location worldwide!`, nil
}
