package handler

// --- Request / Response types ---

type saveQRRequest struct {
	QRContent  string `json:"qrContent"`
	UserEmail  string `json:"userEmail"`
	UserClient string `json:"userClient"`
}

// recordResponse is an inventory record as the scanner front end reads it:
// Spanish keys with dates and times split into d/m/yyyy and HH:mm:ss strings.
type recordResponse struct {
	ID                    int64  `json:"id"`
	Referencia            string `json:"referencia"`
	Serial                string `json:"serial"`
	Estado                string `json:"estado"`
	UsuarioPlanta         string `json:"usuarioPlanta"`
	UsuarioInstalacion    string `json:"usuarioInstalacion"`
	UsuarioDesinstalacion string `json:"usuarioDesinstalacion"`
	FechaAlmacen          string `json:"fechaAlmacen"`
	FechaDespacho         string `json:"fechaDespacho"`
	FechaInstalacion      string `json:"fechaInstalacion"`
	FechaDesinstalacion   string `json:"fechaDesinstalacion"`
	HoraAlmacen           string `json:"horaAlmacen"`
	HoraDespacho          string `json:"horaDespacho"`
	HoraInstalacion       string `json:"horaInstalacion"`
	HoraDesinstalacion    string `json:"horaDesinstalacion"`
	Cliente               string `json:"cliente"`
}

type scanResponse struct {
	Success bool           `json:"success"`
	Action  string         `json:"action"`
	Message string         `json:"message"`
	Data    recordResponse `json:"data"`
}

type recentScansResponse struct {
	Success bool             `json:"success"`
	Data    []recordResponse `json:"data"`
}

type statsBody struct {
	Total         int `json:"total"`
	EnAlmacen     int `json:"enAlmacen"`
	Despachados   int `json:"despachados"`
	Instalados    int `json:"instalados"`
	Desinstalados int `json:"desinstalados"`
	Today         int `json:"today"`
}

type statsResponse struct {
	Success bool      `json:"success"`
	Data    statsBody `json:"data"`
}
