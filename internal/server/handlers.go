package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"blog/internal/auth"
	"blog/internal/forms"
	"blog/internal/mailer"
	"blog/internal/metrics"
	"blog/internal/models"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	number := atoi(r.URL.Query().Get("page"))
	if number < 1 {
		number = 1
	}
	page, err := s.store.ListPosts(r.Context(), number, s.pageSize)
	if err != nil {
		s.serverError(w, r, err, "list posts")
		return
	}
	s.render(w, r, http.StatusOK, "index", map[string]any{"Page": page})
}

func (s *Server) handleShowPost(w http.ResponseWriter, r *http.Request) {
	post, ok := s.loadPost(w, r)
	if !ok {
		return
	}
	s.renderPost(w, r, http.StatusOK, post, forms.Comment{}, forms.Errors{})
}

func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	user := s.currentUser(r)
	if user == nil {
		s.flash(r, "error", "You need to login or register to comment.")
		s.redirect(w, r, "/login")
		return
	}
	post, ok := s.loadPost(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	form := forms.ParseComment(r.PostForm)
	if errs := forms.Validate(form); !errs.Valid() {
		s.renderPost(w, r, http.StatusBadRequest, post, form, errs)
		return
	}
	_, err := s.store.CreateComment(r.Context(), post.ID, user.ID, form.Comment)
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.flash(r, "error", "That post does not exist.")
		s.redirect(w, r, "/")
		return
	case err != nil:
		s.serverError(w, r, err, "create comment")
		return
	}
	s.redirect(w, r, postPath(post.ID))
}

// loadPost fetches the post named in the path, sending the client home when
// it does not exist.
func (s *Server) loadPost(w http.ResponseWriter, r *http.Request) (*models.Post, bool) {
	post, err := s.store.GetPost(r.Context(), postID(r))
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.flash(r, "error", "That post does not exist.")
		s.redirect(w, r, "/")
		return nil, false
	case err != nil:
		s.serverError(w, r, err, "get post")
		return nil, false
	}
	return post, true
}

func (s *Server) renderPost(w http.ResponseWriter, r *http.Request, status int, post *models.Post, form forms.Comment, errs forms.Errors) {
	comments, err := s.store.ListComments(r.Context(), post.ID)
	if err != nil {
		s.serverError(w, r, err, "list comments")
		return
	}
	s.render(w, r, status, "post", map[string]any{
		"Post":     post,
		"Comments": comments,
		"Form":     form,
		"Errors":   errs,
	})
}

func (s *Server) handleNewPost(w http.ResponseWriter, r *http.Request, user *models.User) {
	if r.Method == http.MethodGet {
		s.renderPostForm(w, r, http.StatusOK, nil, forms.Post{}, forms.Errors{})
		return
	}
	form, errs, ok := s.parsePostForm(w, r)
	if !ok {
		return
	}
	if !errs.Valid() {
		s.renderPostForm(w, r, http.StatusBadRequest, nil, form, errs)
		return
	}
	post, err := s.store.CreatePost(r.Context(), user.ID, postInput(form))
	switch {
	case errors.Is(err, models.ErrDuplicateTitle):
		s.flash(r, "error", "A post with that title already exists.")
		s.renderPostForm(w, r, http.StatusConflict, nil, form, forms.Errors{"title": "Choose a different title."})
		return
	case err != nil:
		s.serverError(w, r, err, "create post")
		return
	}
	s.log.WithFields(logrus.Fields{"post": post.ID, "author": user.ID}).Info("post created")
	s.redirect(w, r, "/")
}

func (s *Server) handleEditPost(w http.ResponseWriter, r *http.Request, user *models.User) {
	post, ok := s.loadPost(w, r)
	if !ok {
		return
	}
	if r.Method == http.MethodGet {
		form := forms.Post{Title: post.Title, Subtitle: post.Subtitle, Body: post.Body, ImgURL: post.ImgURL}
		s.renderPostForm(w, r, http.StatusOK, post, form, forms.Errors{})
		return
	}
	form, errs, ok := s.parsePostForm(w, r)
	if !ok {
		return
	}
	if !errs.Valid() {
		s.renderPostForm(w, r, http.StatusBadRequest, post, form, errs)
		return
	}
	_, err := s.store.UpdatePost(r.Context(), post.ID, postInput(form))
	switch {
	case errors.Is(err, models.ErrDuplicateTitle):
		s.flash(r, "error", "A post with that title already exists.")
		s.renderPostForm(w, r, http.StatusConflict, post, form, forms.Errors{"title": "Choose a different title."})
		return
	case errors.Is(err, models.ErrNotFound):
		s.flash(r, "error", "That post does not exist.")
		s.redirect(w, r, "/")
		return
	case err != nil:
		s.serverError(w, r, err, "update post")
		return
	}
	s.log.WithFields(logrus.Fields{"post": post.ID, "editor": user.ID}).Info("post updated")
	s.redirect(w, r, postPath(post.ID))
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request, user *models.User) {
	id := postID(r)
	err := s.store.DeletePost(r.Context(), id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.flash(r, "error", "That post does not exist.")
	case err != nil:
		s.serverError(w, r, err, "delete post")
		return
	default:
		s.log.WithFields(logrus.Fields{"post": id, "admin": user.ID}).Info("post deleted")
		s.flash(r, "success", "Post deleted.")
	}
	s.redirect(w, r, "/")
}

func (s *Server) parsePostForm(w http.ResponseWriter, r *http.Request) (forms.Post, forms.Errors, bool) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return forms.Post{}, nil, false
	}
	form := forms.ParsePost(r.PostForm)
	return form, forms.Validate(form), true
}

// renderPostForm shows the add form when post is nil and the edit form
// otherwise.
func (s *Server) renderPostForm(w http.ResponseWriter, r *http.Request, status int, post *models.Post, form forms.Post, errs forms.Errors) {
	data := map[string]any{
		"Form":    form,
		"Errors":  errs,
		"Editing": post != nil,
		"Action":  "/new-post",
	}
	if post != nil {
		data["Action"] = editPath(post.ID)
	}
	s.render(w, r, status, "make_post", data)
}

func postInput(f forms.Post) models.PostInput {
	return models.PostInput{Title: f.Title, Subtitle: f.Subtitle, Body: f.Body, ImgURL: f.ImgURL}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "register", map[string]any{"Form": forms.Signup{}, "Errors": forms.Errors{}})
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	form := forms.ParseSignup(r.PostForm)
	if errs := forms.Validate(form); !errs.Valid() {
		s.render(w, r, http.StatusBadRequest, "register", map[string]any{"Form": form, "Errors": errs})
		return
	}
	hash, err := auth.HashPassword(form.Password)
	if err != nil {
		s.render(w, r, http.StatusBadRequest, "register", map[string]any{
			"Form":   form,
			"Errors": forms.Errors{"password": "Choose a shorter password."},
		})
		return
	}
	user, err := s.store.CreateUser(r.Context(), form.Username, form.Email, hash)
	switch {
	case errors.Is(err, models.ErrDuplicateEmail):
		s.flash(r, "error", "You have already signed up with that email, log in instead.")
		s.render(w, r, http.StatusConflict, "register", map[string]any{"Form": form, "Errors": forms.Errors{}})
		return
	case err != nil:
		s.serverError(w, r, err, "create user")
		return
	}
	if err := s.startSession(w, r, user); err != nil {
		s.serverError(w, r, err, "start session")
		return
	}
	s.log.WithFields(logrus.Fields{"user": user.ID, "role": user.Role}).Info("user registered")
	s.redirect(w, r, "/")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "login", map[string]any{"Form": forms.Login{}, "Errors": forms.Errors{}})
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	form := forms.ParseLogin(r.PostForm)
	if errs := forms.Validate(form); !errs.Valid() {
		s.render(w, r, http.StatusBadRequest, "login", map[string]any{"Form": form, "Errors": errs})
		return
	}
	user, err := s.store.GetUserByEmail(r.Context(), form.Email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.serverError(w, r, err, "get user")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, form.Password) {
		metrics.RecordLogin(false)
		s.flash(r, "error", "Invalid email or password.")
		s.render(w, r, http.StatusUnauthorized, "login", map[string]any{
			"Form":   forms.Login{Email: form.Email},
			"Errors": forms.Errors{},
		})
		return
	}
	if err := s.startSession(w, r, user); err != nil {
		s.serverError(w, r, err, "start session")
		return
	}
	metrics.RecordLogin(true)
	s.redirect(w, r, "/")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(s.cookieName); err == nil {
		if err := s.store.RevokeSession(r.Context(), cookie.Value); err != nil {
			s.log.WithError(err).Warn("revoke session")
		}
		s.clearSessionCookie(w)
	}
	s.redirect(w, r, "/")
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		form := forms.Contact{}
		if user := s.currentUser(r); user != nil {
			form.Name, form.Email = user.Username, user.Email
		}
		s.render(w, r, http.StatusOK, "contact", map[string]any{"Form": form, "Errors": forms.Errors{}})
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	form := forms.ParseContact(r.PostForm)
	if errs := forms.Validate(form); !errs.Valid() {
		s.render(w, r, http.StatusBadRequest, "contact", map[string]any{"Form": form, "Errors": errs})
		return
	}

	msg := mailer.ContactMessage(form.Name, form.Email, form.Phone, form.Message, s.inbox)
	err := s.mail.Send(r.Context(), msg)
	if errors.Is(err, mailer.ErrNotDelivered) {
		metrics.RecordMail(false)
		s.flash(r, "info", "Your message was recorded, but email delivery is not set up yet.")
		s.redirect(w, r, "/contact")
		return
	}
	if err != nil {
		metrics.RecordMail(false)
		s.log.WithError(err).WithField("reply_to", msg.ReplyTo).Error("contact mail failed")
		s.flash(r, "error", "Your message could not be sent. Please try again later.")
		s.render(w, r, http.StatusBadGateway, "contact", map[string]any{"Form": form, "Errors": forms.Errors{}})
		return
	}
	metrics.RecordMail(true)
	s.flash(r, "success", "Successfully sent your message.")
	s.redirect(w, r, "/contact")
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "about", nil)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		s.log.WithError(err).Warn("health check failed")
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound, "The page you asked for does not exist.")
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusMethodNotAllowed, "That action is not supported here.")
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error, op string) {
	s.log.WithError(err).WithField("op", op).Error("request failed")
	s.renderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
}
