package server

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"car-price-app/mapping"
	"car-price-app/models"
)

const (
	msgPredictionError = "Erreur pendant la prédiction: "
	msgNoComparables   = "Aucune voiture exemple trouvée dans cette gamme de prix."
	msgBusy            = "Le serveur est occupé, veuillez réessayer."
)

var fieldLabels = map[string]string{
	models.FieldYear:             "Année",
	models.FieldMileage:          "Kilométrage (km)",
	models.FieldEnginePower:      "Puissance (ch)",
	models.FieldBrand:            "Marque",
	models.FieldFuel:             "Carburant",
	models.FieldGearbox:          "Boîte de vitesses",
	models.FieldVehicleCondition: "État du véhicule",
	models.FieldLocation:         "Localisation",
}

type numericInput struct {
	Name, Label, Value string
	Min, Max, Step     int
}

type selectInput struct {
	Name, Label, Selected string
	Options              []string
}

type card struct {
	Label, Price, Description string
}

type result struct {
	Price         string
	Comparables   []card
	NoComparables string
	Average       string
}

type pageData struct {
	Numeric []numericInput
	Selects []selectInput
	Result  *result
	Error   string
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, s.formData(s.defaultInput()))
}

func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxRequestBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	in := models.VehicleInput{
		Year:             models.RawNumber(r.PostFormValue(models.FieldYear)),
		Mileage:          models.RawNumber(r.PostFormValue(models.FieldMileage)),
		EnginePower:      models.RawNumber(r.PostFormValue(models.FieldEnginePower)),
		Brand:            r.PostFormValue(models.FieldBrand),
		Fuel:             r.PostFormValue(models.FieldFuel),
		Gearbox:          r.PostFormValue(models.FieldGearbox),
		VehicleCondition: r.PostFormValue(models.FieldVehicleCondition),
		Location:         r.PostFormValue(models.FieldLocation),
	}
	data := s.formData(in)

	if err := checkBounds(in); err != nil {
		var be *boundsError
		if errors.As(err, &be) {
			data.Error = fieldLabels[be.Field] + ": valeur hors limites (" +
				strconv.Itoa(be.Bound.Min) + " à " + strconv.Itoa(be.Bound.Max) + ")"
		}
		s.render(w, http.StatusBadRequest, data)
		return
	}

	release, err := s.admit(r.Context())
	if err != nil {
		data.Error = msgBusy
		s.render(w, http.StatusServiceUnavailable, data)
		return
	}
	est, err := s.estimator.Estimate(r.Context(), in)
	release()
	if err != nil {
		data.Error = msgPredictionError + err.Error()
		s.render(w, http.StatusOK, data)
		return
	}
	s.record(r.Context(), est)

	res := &result{Price: formatPrice(est.Price, s.opts.Currency)}
	for _, l := range est.Comparables {
		res.Comparables = append(res.Comparables, card{
			Label:       l.Label,
			Price:       formatPrice(l.Price, s.opts.Currency),
			Description: l.Description,
		})
	}
	if len(res.Comparables) == 0 {
		res.NoComparables = msgNoComparables
	} else if est.Summary != nil {
		res.Average = formatPrice(est.Summary.AveragePrice, s.opts.Currency)
	}
	data.Result = res
	s.render(w, http.StatusOK, data)
}

// defaultInput is the form's initial state: the numeric defaults and the
// first option of every categorical field.
func (s *Server) defaultInput() models.VehicleInput {
	first := func(field string) string {
		if labels := s.table.Labels(field); len(labels) > 0 {
			return labels[0]
		}
		return ""
	}
	def := func(field string) models.RawNumber {
		return models.RawNumber(strconv.Itoa(models.NumericBounds[field].Default))
	}
	return models.VehicleInput{
		Year:             def(models.FieldYear),
		Mileage:          def(models.FieldMileage),
		EnginePower:      def(models.FieldEnginePower),
		Brand:            first(models.FieldBrand),
		Fuel:             first(models.FieldFuel),
		Gearbox:          first(models.FieldGearbox),
		VehicleCondition: first(models.FieldVehicleCondition),
		Location:         first(models.FieldLocation),
	}
}

func (s *Server) formData(in models.VehicleInput) *pageData {
	data := &pageData{}
	for _, f := range models.NumericFields {
		b := models.NumericBounds[f]
		data.Numeric = append(data.Numeric, numericInput{
			Name: f, Label: fieldLabels[f], Value: in.Numeric(f),
			Min: b.Min, Max: b.Max, Step: b.Step,
		})
	}
	for _, f := range models.CategoricalFields {
		data.Selects = append(data.Selects, selectInput{
			Name: f, Label: fieldLabels[f], Selected: mapping.Normalize(in.Categorical(f)),
			Options: s.table.Labels(f),
		})
	}
	return data
}

func (s *Server) render(w http.ResponseWriter, status int, data *pageData) {
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		s.logger.Error("[server] render: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
