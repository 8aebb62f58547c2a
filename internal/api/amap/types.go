package amap

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// APIError is a semantic rejection from the map provider: the HTTP call
// succeeded but the payload carried status "0".
type APIError struct {
	Info     string
	InfoCode string
	Endpoint string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("amap %s: %s (infocode=%s)", e.Endpoint, e.Info, e.InfoCode)
}

// IsInfoCode reports whether err is an APIError carrying the given code.
func IsInfoCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.InfoCode == code
}

// The provider emits "[]" in place of empty string fields, and numbers
// as quoted strings. These types absorb that at the decode boundary so
// nothing downstream has to inspect shapes.

type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '[' || b[0] == '{' {
		*s = ""
		return nil
	}
	var v string
	if b[0] == '"' {
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
	} else {
		v = string(b)
	}
	*s = flexString(v)
	return nil
}

type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	t := strings.Trim(string(b), `"`)
	if t == "" || t == "[]" || t == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return fmt.Errorf("amap: non-numeric value %q", t)
	}
	*n = flexInt(f)
	return nil
}

type flexFloat struct {
	val float64
	set bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	t := strings.Trim(string(b), `"`)
	if t == "" || t == "[]" || t == "null" {
		f.set = false
		return nil
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		f.set = false
		return nil
	}
	f.val, f.set = v, true
	return nil
}

// Ptr returns the parsed value or nil when the field was absent or junk.
func (f flexFloat) Ptr() *float64 {
	if !f.set {
		return nil
	}
	v := f.val
	return &v
}

type statusEnvelope struct {
	Status   string `json:"status"`
	Info     string `json:"info"`
	InfoCode string `json:"infocode"`
}

type wirePOI struct {
	ID       flexString `json:"id"`
	Name     flexString `json:"name"`
	Address  flexString `json:"address"`
	Location flexString `json:"location"`
	Type     flexString `json:"type"`
	Tel      flexString `json:"tel"`
	BizExt   struct {
		Rating flexFloat `json:"rating"`
		Cost   flexFloat `json:"cost"`
	} `json:"biz_ext"`
}

type placeSearchResponse struct {
	statusEnvelope
	POIs []wirePOI `json:"pois"`
}

type geocodeResponse struct {
	statusEnvelope
	Geocodes []struct {
		Adcode           flexString `json:"adcode"`
		Location         flexString `json:"location"`
		FormattedAddress flexString `json:"formatted_address"`
		City             flexString `json:"city"`
		District         flexString `json:"district"`
	} `json:"geocodes"`
}

type regeoResponse struct {
	statusEnvelope
	Regeocode struct {
		FormattedAddress flexString `json:"formatted_address"`
	} `json:"regeocode"`
}

type weatherResponse struct {
	statusEnvelope
	Lives []struct {
		City          flexString `json:"city"`
		Weather       flexString `json:"weather"`
		Temperature   flexString `json:"temperature"`
		Humidity      flexString `json:"humidity"`
		WindDirection flexString `json:"winddirection"`
		WindPower     flexString `json:"windpower"`
		ReportTime    flexString `json:"reporttime"`
	} `json:"lives"`
	Forecasts []struct {
		City  flexString `json:"city"`
		Casts []struct {
			Date         flexString `json:"date"`
			DayWeather   flexString `json:"dayweather"`
			NightWeather flexString `json:"nightweather"`
			DayTemp      flexString `json:"daytemp"`
			NightTemp    flexString `json:"nighttemp"`
			DayWind      flexString `json:"daywind"`
			DayPower     flexString `json:"daypower"`
		} `json:"casts"`
	} `json:"forecasts"`
}

type wireStep struct {
	Instruction flexString `json:"instruction"`
	Polyline    flexString `json:"polyline"`
}

type routeResponse struct {
	statusEnvelope
	Route struct {
		Paths []struct {
			Distance flexInt    `json:"distance"`
			Duration flexInt    `json:"duration"`
			Steps    []wireStep `json:"steps"`
		} `json:"paths"`
		Transits []struct {
			Distance flexInt `json:"distance"`
			Duration flexInt `json:"duration"`
		} `json:"transits"`
	} `json:"route"`
}

type distanceResponse struct {
	statusEnvelope
	Results []struct {
		Distance flexInt `json:"distance"`
		Duration flexInt `json:"duration"`
	} `json:"results"`
}

// GeocodeResult is the typed projection of a forward-geocode hit.
type GeocodeResult struct {
	Adcode           string `json:"adcode"`
	Location         string `json:"location"`
	FormattedAddress string `json:"formatted_address"`
	City             string `json:"city"`
	District         string `json:"district"`
}

// RouteStep is one navigable leg fragment with its encoded polyline.
type RouteStep struct {
	Instruction string `json:"instruction,omitempty"`
	Polyline    string `json:"polyline,omitempty"`
}

// RouteResult is a planned route between two coordinates. Transit
// routes carry totals only; the provider does not expose step
// polylines for them.
type RouteResult struct {
	Distance int         `json:"distance"` // meters
	Duration int         `json:"duration"` // seconds
	Steps    []RouteStep `json:"steps,omitempty"`
}

// Marker is a labelled point rendered onto a static map.
type Marker struct {
	Location string
	Label    string
	Color    string
}
