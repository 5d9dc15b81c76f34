package utils

// REVISION is stamped into API responses so operators can tell which
// build handled a request.
const REVISION = "1.4.0"
