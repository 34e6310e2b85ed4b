package client

// DriverVersion is the version of this driver.
const DriverVersion = "0.3.0"
