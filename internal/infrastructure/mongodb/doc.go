// Package mongodb connects to MongoDB for the "mongo" credential store driver.
package mongodb
