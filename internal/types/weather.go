package types

// Weather providers. The primary provider is the map vendor's city
// weather API; when it rejects a city code the report is rebuilt from
// the open-meteo forecast keyed by coordinate and tagged accordingly.
const (
	WeatherProviderAmap      = "amap"
	WeatherProviderOpenMeteo = "open-meteo"
)

// WeatherLive is the current-conditions snapshot.
type WeatherLive struct {
	Weather       string `json:"weather,omitempty"`
	Temperature   string `json:"temperature,omitempty"`
	Humidity      string `json:"humidity,omitempty"`
	WindDirection string `json:"winddirection,omitempty"`
	WindPower     string `json:"windpower,omitempty"`
	ReportTime    string `json:"reporttime,omitempty"`
}

// DailyForecast is one day of forecast, normalized across providers.
type DailyForecast struct {
	Date         string `json:"date"`
	DayWeather   string `json:"dayweather,omitempty"`
	NightWeather string `json:"nightweather,omitempty"`
	DayTemp      string `json:"daytemp,omitempty"`
	NightTemp    string `json:"nighttemp,omitempty"`
	Wind         string `json:"wind,omitempty"`
}

// WeatherReport bundles current conditions with the forecast window.
type WeatherReport struct {
	Provider  string          `json:"provider"`
	City      string          `json:"city,omitempty"`
	Live      *WeatherLive    `json:"live,omitempty"`
	Forecasts []DailyForecast `json:"forecasts,omitempty"`
}
