package amap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

type openMeteoResponse struct {
	Current struct {
		Time                string  `json:"time"`
		Temperature         float64 `json:"temperature_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		Humidity            float64 `json:"relative_humidity_2m"`
		WeatherCode         int     `json:"weather_code"`
		WindSpeed           float64 `json:"wind_speed_10m"`
	} `json:"current"`
	Daily struct {
		Time          []string  `json:"time"`
		TempMax       []float64 `json:"temperature_2m_max"`
		TempMin       []float64 `json:"temperature_2m_min"`
		Precipitation []float64 `json:"precipitation_sum"`
		WeatherCode   []int     `json:"weather_code"`
	} `json:"daily"`
}

// openMeteoWeather rebuilds a WeatherReport from the open-meteo
// forecast API, used when the primary provider has no data for the
// city code. location is "lng,lat".
func (c *ClientImpl) openMeteoWeather(ctx context.Context, location, timezone string) (report *types.WeatherReport, err error) {
	start := time.Now()
	defer func() { c.recordCall(ctx, "open-meteo", start, err) }()

	parts := strings.Split(location, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("open-meteo: invalid coordinate %q", location)
	}

	params := url.Values{
		"longitude": {parts[0]},
		"latitude":  {parts[1]},
		"current":   {"temperature_2m,apparent_temperature,relative_humidity_2m,weather_code,wind_speed_10m"},
		"daily":     {"temperature_2m_max,temperature_2m_min,precipitation_sum,weather_code"},
		"timezone":  {timezone},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.openMeteoURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("open-meteo: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open-meteo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open-meteo: unexpected status %d", resp.StatusCode)
	}

	var data openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("open-meteo: decode: %w", err)
	}

	report = &types.WeatherReport{
		Provider: types.WeatherProviderOpenMeteo,
		Live: &types.WeatherLive{
			Weather:     weatherCodeText(data.Current.WeatherCode),
			Temperature: formatTemp(data.Current.Temperature),
			Humidity:    formatTemp(data.Current.Humidity),
			WindPower:   formatTemp(data.Current.WindSpeed),
			ReportTime:  data.Current.Time,
		},
	}

	d := data.Daily
	n := len(d.Time)
	for _, s := range [][]float64{d.TempMax, d.TempMin} {
		if len(s) < n {
			n = len(s)
		}
	}
	if len(d.WeatherCode) < n {
		n = len(d.WeatherCode)
	}
	for i := 0; i < n; i++ {
		text := weatherCodeText(d.WeatherCode[i])
		report.Forecasts = append(report.Forecasts, types.DailyForecast{
			Date:         d.Time[i],
			DayWeather:   text,
			NightWeather: text,
			DayTemp:      formatTemp(d.TempMax[i]),
			NightTemp:    formatTemp(d.TempMin[i]),
		})
	}
	return report, nil
}

// timezoneFor picks the IANA zone for the weather fallback. The
// rejected city codes are regions outside the primary provider's
// coverage, so only those need distinguishing from the mainland zone.
func timezoneFor(city, adcode string) string {
	switch {
	case strings.Contains(city, "香港") || adcode == "810000":
		return "Asia/Hong_Kong"
	case strings.Contains(city, "澳门") || adcode == "820000":
		return "Asia/Macau"
	case strings.Contains(city, "台湾") || strings.HasPrefix(adcode, "71"):
		return "Asia/Taipei"
	}
	return "Asia/Shanghai"
}

func formatTemp(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// weatherCodeText maps WMO weather codes to the same vocabulary the
// primary provider uses, so prompts read uniformly across providers.
func weatherCodeText(code int) string {
	switch {
	case code == 0:
		return "晴"
	case code <= 2:
		return "多云"
	case code == 3:
		return "阴"
	case code <= 48:
		return "雾"
	case code <= 57:
		return "毛毛雨"
	case code <= 67:
		return "雨"
	case code <= 77:
		return "雪"
	case code <= 82:
		return "阵雨"
	case code <= 86:
		return "阵雪"
	case code <= 99:
		return "雷阵雨"
	}
	return "未知"
}
