package rest

import "net/http"

func (s *Server) login(_ http.ResponseWriter, r *http.Request) (any, error) {
	var req LoginRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}
	u, err := s.session.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	return toUserInfo(u), nil
}

func (s *Server) register(_ http.ResponseWriter, r *http.Request) (any, error) {
	var req RegisterRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}
	if err := s.session.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		return nil, err
	}
	return &MessageResponse{Message: s.config.GetMessage("register_success")}, nil
}

func (s *Server) forgotPassword(_ http.ResponseWriter, r *http.Request) (any, error) {
	var req ForgotRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}
	msg, err := s.session.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		return nil, err
	}
	return &MessageResponse{Message: msg}, nil
}

func (s *Server) logout(_ http.ResponseWriter, r *http.Request) (any, error) {
	return nil, s.session.Logout(r.Context())
}

func (s *Server) toggleTheme(_ http.ResponseWriter, r *http.Request) (any, error) {
	theme, err := s.session.ToggleTheme(r.Context())
	if err != nil {
		return nil, err
	}
	return &ThemeResponse{Theme: string(theme)}, nil
}
