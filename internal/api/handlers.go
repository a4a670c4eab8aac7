package api

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mesikahq/luxe-portal/internal/apiclient"
	"github.com/mesikahq/luxe-portal/internal/audit"
	"github.com/mesikahq/luxe-portal/internal/auth"
	"github.com/mesikahq/luxe-portal/internal/contact"
	"github.com/mesikahq/luxe-portal/internal/metrics"
	"github.com/mesikahq/luxe-portal/internal/patient"
	"github.com/mesikahq/luxe-portal/internal/session"
)

const (
	msgPatientAdded     = "Patient added successfully!"
	msgPatientUpdated   = "Patient updated successfully!"
	msgPatientDeleted   = "Patient deleted"
	msgAddFailed        = "Failed to add patient"
	msgUpdateFailed     = "Failed to update patient"
	msgDeleteFailed     = "Failed to delete patient"
	msgLoadFailed       = "Failed to load patient"
	msgListFailed       = "Failed to load patients"
	msgSessionExpired   = "Your session has expired. Please log in again."
	msgPatientNotFound  = "That patient no longer exists."
	msgInvalidJSONInput = "value is required"
)

type Handler struct {
	authService    auth.Service
	patientService patient.Service
	auditService   audit.Service
	sessions       *session.Store
	forms          *patient.FormValidator
	metrics        *metrics.Metrics
	logger         *zap.Logger
}

func NewHandler(
	authService auth.Service,
	patientService patient.Service,
	auditService audit.Service,
	sessions *session.Store,
	forms *patient.FormValidator,
	metrics *metrics.Metrics,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		authService:    authService,
		patientService: patientService,
		auditService:   auditService,
		sessions:       sessions,
		forms:          forms,
		metrics:        metrics,
		logger:         logger,
	}
}

// TemplateFuncs are available to every page template.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"displayContact": contact.DisplayWire,
		"age": func(age *int) string {
			if age == nil {
				return "-"
			}
			return strconv.Itoa(*age)
		},
	}
}

// render fills the values every page expects before executing name.
func (h *Handler) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Session"] = session.FromContext(c)
	if _, ok := data["Flash"]; !ok {
		data["Flash"] = session.PopFlash(c)
	}
	if _, ok := data["Errors"]; !ok {
		data["Errors"] = map[string]string{}
	}
	if _, ok := data["Error"]; !ok {
		data["Error"] = ""
	}
	c.HTML(status, name, data)
}

// apiContext carries the session token to the remote API.
func apiContext(c *gin.Context) context.Context {
	return apiclient.WithToken(c.Request.Context(), session.FromContext(c).Token)
}

// Authentication Handlers

func (h *Handler) LoginPage(c *gin.Context) {
	if session.FromContext(c).Authenticated() {
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}
	h.render(c, http.StatusOK, "login.html", gin.H{
		"Title": "Login",
		"Form":  &auth.LoginForm{},
	})
}

func (h *Handler) Login(c *gin.Context) {
	var form auth.LoginForm
	if err := c.ShouldBind(&form); err != nil {
		h.render(c, http.StatusBadRequest, "login.html", gin.H{
			"Title": "Login",
			"Form":  &form,
			"Error": "Login failed",
		})
		return
	}

	if errs := form.Validate(); len(errs) > 0 {
		h.validationFailed(c, "login", errs)
		h.render(c, http.StatusUnprocessableEntity, "login.html", gin.H{
			"Title":  "Login",
			"Form":   &form,
			"Errors": errs,
		})
		return
	}

	sess, err := h.authService.Login(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		h.logger.Info("Login rejected", zap.String("username", form.Username), zap.Error(err))

		status, msg := http.StatusBadGateway, "Login failed. Please try again."
		var loginErr *auth.LoginError
		if errors.As(err, &loginErr) {
			msg = loginErr.Message
			if errors.Is(err, auth.ErrInvalidCredentials) {
				status = http.StatusUnauthorized
			}
		}
		h.render(c, status, "login.html", gin.H{
			"Title": "Login",
			"Form":  &auth.LoginForm{Username: form.Username},
			"Error": msg,
		})
		return
	}

	if err := h.sessions.Save(c, sess); err != nil {
		h.logger.Error("Failed to save session", zap.Error(err))
		h.render(c, http.StatusInternalServerError, "login.html", gin.H{
			"Title": "Login",
			"Form":  &auth.LoginForm{Username: form.Username},
			"Error": "Login failed. Please try again.",
		})
		return
	}

	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (h *Handler) Logout(c *gin.Context) {
	h.authService.Logout(c.Request.Context(), session.FromContext(c))
	h.sessions.Clear(c)
	c.Redirect(http.StatusSeeOther, "/")
}

// Patient Handlers

func (h *Handler) Dashboard(c *gin.Context) {
	patients, err := h.patientService.List(apiContext(c))
	if err != nil {
		if h.sessionRejected(c, err) {
			return
		}
		h.logger.Error("Failed to list patients", zap.Error(err))
		h.render(c, http.StatusBadGateway, "dashboard.html", gin.H{
			"Title":    "Dashboard",
			"Patients": []patient.Patient{},
			"Error":    msgListFailed,
		})
		return
	}

	h.render(c, http.StatusOK, "dashboard.html", gin.H{
		"Title":    "Dashboard",
		"Patients": patients,
	})
}

func (h *Handler) AddPatientPage(c *gin.Context) {
	h.renderPatientForm(c, http.StatusOK, "", &patient.Form{}, nil, "")
}

func (h *Handler) AddPatient(c *gin.Context) {
	var form patient.Form
	if err := c.ShouldBind(&form); err != nil {
		h.logger.Debug("Failed to bind patient form", zap.Error(err))
		h.renderPatientForm(c, http.StatusBadRequest, "", &form, nil, msgAddFailed)
		return
	}

	if errs := h.forms.Validate(&form); len(errs) > 0 {
		h.validationFailed(c, "patient", errs)
		h.renderPatientForm(c, http.StatusUnprocessableEntity, "", &form, errs, "")
		return
	}

	p := form.ToPatient(h.forms.Rules())
	if err := h.patientService.Create(apiContext(c), p); err != nil {
		if h.sessionRejected(c, err) {
			return
		}
		h.logger.Error("Failed to create patient", zap.Error(err))
		h.renderPatientForm(c, http.StatusBadGateway, "", &form, nil, msgAddFailed)
		return
	}

	session.SetFlash(c, msgPatientAdded)
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (h *Handler) EditPatientPage(c *gin.Context) {
	id := c.Param("id")
	p, err := h.patientService.Get(apiContext(c), id)
	if err != nil {
		if h.sessionRejected(c, err) {
			return
		}
		if errors.Is(err, patient.ErrPatientNotFound) {
			h.render(c, http.StatusNotFound, "404.html", gin.H{
				"Title":   "Page Not Found",
				"Message": msgPatientNotFound,
			})
			return
		}
		h.logger.Error("Failed to load patient", zap.String("patient_id", id), zap.Error(err))
		session.SetFlash(c, msgLoadFailed)
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}

	h.renderPatientForm(c, http.StatusOK, id, patient.FormFromPatient(p, h.forms.Rules()), nil, "")
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	id := c.Param("id")
	var form patient.Form
	if err := c.ShouldBind(&form); err != nil {
		h.logger.Debug("Failed to bind patient form", zap.String("patient_id", id), zap.Error(err))
		h.renderPatientForm(c, http.StatusBadRequest, id, &form, nil, msgUpdateFailed)
		return
	}

	if errs := h.forms.Validate(&form); len(errs) > 0 {
		h.validationFailed(c, "patient", errs)
		h.renderPatientForm(c, http.StatusUnprocessableEntity, id, &form, errs, "")
		return
	}

	p := form.ToPatient(h.forms.Rules())
	if err := h.patientService.Update(apiContext(c), id, p); err != nil {
		if h.sessionRejected(c, err) {
			return
		}
		h.logger.Error("Failed to update patient", zap.String("patient_id", id), zap.Error(err))
		h.renderPatientForm(c, http.StatusBadGateway, id, &form, nil, msgUpdateFailed)
		return
	}

	session.SetFlash(c, msgPatientUpdated)
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (h *Handler) DeletePatient(c *gin.Context) {
	id := c.Param("id")
	if err := h.patientService.Delete(apiContext(c), id); err != nil {
		if h.sessionRejected(c, err) {
			return
		}
		h.logger.Error("Failed to delete patient", zap.String("patient_id", id), zap.Error(err))
		session.SetFlash(c, msgDeleteFailed)
	} else {
		session.SetFlash(c, msgPatientDeleted)
	}
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// renderPatientForm shows the add form when id is empty and the edit form
// otherwise.
func (h *Handler) renderPatientForm(c *gin.Context, status int, id string, form *patient.Form, errs map[string]string, errMsg string) {
	data := gin.H{
		"Title":  "Add Patient",
		"Action": "/add-patient",
		"Submit": "Add Patient",
		"Edit":   false,
		"Form":   form,
		"Rules":  h.forms.Rules(),
		"Error":  errMsg,
	}
	if id != "" {
		data["Title"] = "Edit Patient"
		data["Action"] = "/edit-patient/" + id
		data["Submit"] = "Update"
		data["Edit"] = true
	}
	if errs != nil {
		data["Errors"] = errs
	}
	h.render(c, status, "patient_form.html", data)
}

// sessionRejected ends the session when the API no longer accepts its token.
func (h *Handler) sessionRejected(c *gin.Context, err error) bool {
	if !errors.Is(err, apiclient.ErrUnauthorized) {
		return false
	}
	h.sessions.Clear(c)
	session.SetFlash(c, msgSessionExpired)
	c.Redirect(http.StatusSeeOther, "/")
	return true
}

func (h *Handler) validationFailed(c *gin.Context, form string, errs map[string]string) {
	fields := make([]string, 0, len(errs))
	for field := range errs {
		h.metrics.ValidationFailed(form, field)
		fields = append(fields, field)
	}

	if h.auditService == nil {
		return
	}
	details, _ := json.Marshal(gin.H{"form": form, "fields": fields})
	_ = h.auditService.LogEvent(c.Request.Context(), &audit.AuditEvent{
		EventType: audit.EventValidationError,
		Action:    "VALIDATE",
		Resource:  form,
		Status:    audit.StatusFailure,
		Details:   details,
	})
}

// Contact Handlers

type contactRequest struct {
	Value *string `json:"value" binding:"required"`
}

// FormatContact reformats a partially typed contact number. The page calls it
// on every keystroke.
func (h *Handler) FormatContact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidJSONInput})
		return
	}

	rules := h.forms.Rules()
	c.JSON(http.StatusOK, gin.H{
		"display": rules.Format(*req.Value),
		"digits":  contact.Digits(*req.Value),
	})
}

func (h *Handler) ValidateContact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidJSONInput})
		return
	}

	rules := h.forms.Rules()
	res := rules.Validate(*req.Value)
	body := gin.H{
		"valid":   res.Valid(),
		"kind":    res.Kind,
		"message": res.Message,
	}
	if res.Valid() {
		body["wire"] = rules.ToWireFormat(*req.Value)
	} else {
		h.metrics.ValidationFailed("contact", "contactNo")
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) NotFound(c *gin.Context) {
	h.render(c, http.StatusNotFound, "404.html", gin.H{
		"Title":   "Page Not Found",
		"Message": "",
	})
}
